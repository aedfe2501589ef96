package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
)

const (
	// MaxPromptChars bounds the prompt so a single request cannot carry an
	// arbitrarily large body to the provider.
	MaxPromptChars = 32 * 1024
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validator: validator.New()}
}

func (rv *RequestValidator) ValidateGenerationRequest(req *domain.GenerationRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", apperrors.ErrInvalidInput)
	}
	if len(req.Prompt) > MaxPromptChars {
		return fmt.Errorf("%w: prompt exceeds maximum length of %d characters", apperrors.ErrInvalidInput, MaxPromptChars)
	}
	return nil
}

func (rv *RequestValidator) ValidateExtractionRequest(req *domain.ExtractionRequest) error {
	if err := rv.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}

func (rv *RequestValidator) ValidateTranscriptionRequest(req *domain.TranscriptionRequest) error {
	if err := rv.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}
