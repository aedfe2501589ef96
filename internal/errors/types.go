package errors

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderAPI         = errors.New("provider api error")
	ErrGenerationFailed    = errors.New("text generation failed")
	ErrExtractionFailed    = errors.New("text extraction failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrUnavailable         = errors.New("service unavailable")
)
