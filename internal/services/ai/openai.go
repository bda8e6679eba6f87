package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	logpkg "github.com/pmarkell/routine-scheduler/internal/logger"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

const routerSystemPrompt = `You are a command router for a calendar-scheduling agent.

You receive natural language commands like:
- "schedule my routine for the next 7 days"
- "clear this week's schedule"
- "just schedule today"
- "schedule next 3 days without rescheduling"

You MUST respond with a single JSON object with this structure:

{
  "intent": "<one of: schedule_range | clear_range | schedule_today>",
  "start_date": "YYYY-MM-DD",
  "days": 7,
  "allow_reschedule": true
}

Rules:
- ALWAYS output valid JSON.
- NEVER include explanations or commentary outside the JSON.
- If the user says "today" or "tomorrow", resolve it to a concrete date.
- If the user doesn't specify dates, assume start_date is today and days=7 for ranges.
- Map phrases like "this week" to 7 days starting today.
- Map phrases like "next 3 days" to days=3.
- "allow_reschedule" is false only when the user asks not to move or reschedule tasks.
- For schedule_today, set days=1 and start_date to today.
- If you are unsure, choose a reasonable default instead of asking questions.`

// OpenAIRouter implements CommandRouter using OpenAI's chat completions API
// in JSON mode.
type OpenAIRouter struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
	now       func() time.Time
}

// NewOpenAIRouter creates a new OpenAI command router.
func NewOpenAIRouter(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIRouter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIRouter{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
		now:       time.Now,
	}
}

// ParseCommand routes a natural-language command to a structured intent.
func (r *OpenAIRouter) ParseCommand(ctx context.Context, command string) (*Intent, error) {
	// The model has no clock; anchor relative dates like "tomorrow".
	userPrompt := fmt.Sprintf("Today is %s (%s).\n\nCommand: %s",
		r.now().Format("2006-01-02"), r.now().Weekday(), command)

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(routerSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if r.debugMode {
		r.logger.Debug("llm_api_request",
			zap.String("operation", "parse_command"),
			zap.String("model", r.model),
			zap.String("command_preview", logpkg.SanitizeString(command, 200)))
	}

	start := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to route command: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to route command: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}
	content := resp.Choices[0].Message.Content

	if r.debugMode {
		r.logger.Debug("llm_api_response",
			zap.String("operation", "parse_command"),
			zap.String("model", r.model),
			zap.String("response_preview", logpkg.SanitizeString(content, 500)),
			zap.Int64("latency_ms", latency.Milliseconds()))
	}

	return parseIntentResponse(content)
}

// parseIntentResponse decodes and validates the model's JSON reply. Models
// occasionally wrap the object in prose despite JSON mode, so a brace scan
// recovers the payload before giving up.
func parseIntentResponse(content string) (*Intent, error) {
	var reply struct {
		Intent          IntentType `json:"intent"`
		StartDate       string     `json:"start_date"`
		Days            int        `json:"days"`
		AllowReschedule *bool      `json:"allow_reschedule"`
	}
	raw := content
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		start := bytes.Index([]byte(raw), []byte("{"))
		end := bytes.LastIndex([]byte(raw), []byte("}"))
		if start == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse intent response: %w", err)
		}
		raw = raw[start : end+1]
		if err := json.Unmarshal([]byte(raw), &reply); err != nil {
			return nil, fmt.Errorf("failed to parse intent response: %w", err)
		}
	}

	intent := Intent{
		Type:            reply.Intent,
		StartDate:       reply.StartDate,
		Days:            reply.Days,
		AllowReschedule: reply.AllowReschedule == nil || *reply.AllowReschedule,
	}

	switch intent.Type {
	case IntentScheduleRange, IntentClearRange:
		if intent.Days <= 0 {
			intent.Days = 7
		}
	case IntentScheduleToday:
		intent.Days = 1
	default:
		return nil, fmt.Errorf("unknown intent %q", intent.Type)
	}

	if intent.StartDate != "" {
		if _, err := time.Parse("2006-01-02", intent.StartDate); err != nil {
			return nil, fmt.Errorf("invalid start date %q in intent: %w", intent.StartDate, err)
		}
	}

	return &intent, nil
}
