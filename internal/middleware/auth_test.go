package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/request"
	"github.com/pmarkell/routine-scheduler/internal/services/oidc"
)

func newAuthHandler(t *testing.T) http.Handler {
	t.Helper()
	// A verifier pointed at an unreachable JWKS endpoint; every token fails
	// verification, which is all the rejection paths need.
	verifier := oidc.NewVerifier(oidc.NewKeyCache("http://127.0.0.1:0/jwks"), "https://auth.example.com")
	return Auth(verifier, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := request.ClaimsFromContext(r); claims == nil {
			t.Error("handler reached without claims in context")
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMissingHeader(t *testing.T) {
	t.Parallel()
	handler := newAuthHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMalformedHeader(t *testing.T) {
	t.Parallel()
	handler := newAuthHandler(t)

	for _, header := range []string{"token abc", "Bearer", "Bearer a b"} {
		req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestAuthInvalidToken(t *testing.T) {
	t.Parallel()
	handler := newAuthHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
