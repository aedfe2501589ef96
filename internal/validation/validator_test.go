package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/validation"
)

func TestValidateGenerationRequest(t *testing.T) {
	rv := validation.NewRequestValidator()

	assert.NoError(t, rv.ValidateGenerationRequest(&domain.GenerationRequest{Prompt: "hello"}))

	for _, prompt := range []string{"", "   ", "\n\t"} {
		err := rv.ValidateGenerationRequest(&domain.GenerationRequest{Prompt: prompt})
		require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}

	long := strings.Repeat("a", validation.MaxPromptChars+1)
	err := rv.ValidateGenerationRequest(&domain.GenerationRequest{Prompt: long})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "maximum length")
}

func TestValidateExtractionRequest(t *testing.T) {
	rv := validation.NewRequestValidator()

	assert.NoError(t, rv.ValidateExtractionRequest(&domain.ExtractionRequest{
		ImageURL:            "https://example.com/doc.png",
		ConfidenceThreshold: 80,
	}))

	tests := []struct {
		name string
		req  domain.ExtractionRequest
	}{
		{"missing url", domain.ExtractionRequest{}},
		{"not a url", domain.ExtractionRequest{ImageURL: "nope"}},
		{"threshold too high", domain.ExtractionRequest{ImageURL: "https://example.com/a.png", ConfidenceThreshold: 150}},
		{"threshold negative", domain.ExtractionRequest{ImageURL: "https://example.com/a.png", ConfidenceThreshold: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, rv.ValidateExtractionRequest(&tt.req), apperrors.ErrInvalidInput)
		})
	}
}

func TestValidateTranscriptionRequest(t *testing.T) {
	rv := validation.NewRequestValidator()

	assert.NoError(t, rv.ValidateTranscriptionRequest(&domain.TranscriptionRequest{
		AudioURL: "https://example.com/clip.wav",
	}))
	require.ErrorIs(t, rv.ValidateTranscriptionRequest(&domain.TranscriptionRequest{}), apperrors.ErrInvalidInput)
}
