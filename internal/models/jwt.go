package models

// JWTClaims represents the claims extracted from a verified API bearer token.
type JWTClaims struct {
	Sub   string `json:"sub"`   // Subject (caller identity from the provider)
	Email string `json:"email"` // Caller email, if present
	Exp   int64  `json:"exp"`   // Expiration time
	Iat   int64  `json:"iat"`   // Issued at
	Iss   string `json:"iss"`   // Issuer
}
