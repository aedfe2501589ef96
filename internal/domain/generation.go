package domain

import "context"

// GenerationRequest carries the caller's input for one text generation call.
// Sampling parameters come from process-wide configuration, not from the wire.
type GenerationRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// GenerationResponse is the generic result of one generation call.
type GenerationResponse struct {
	GeneratedText    string         `json:"generated_text"`
	ModelID          string         `json:"model_id"`
	MaxTokens        int            `json:"max_tokens"`
	Temperature      float64        `json:"temperature"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	Usage            map[string]int `json:"usage,omitempty"`
}

// TextGenerator translates generic generation requests into provider calls.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)

	// TestConnection is a health-check primitive. It never returns an error;
	// any failure is logged and reported as false.
	TestConnection(ctx context.Context) bool
}
