package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassProvider
	ClassGeneration
	ClassExtraction
	ClassTranscription
	ClassUnavailable
)

// ClassifiedError pairs an internal error with the sanitized view a client
// is allowed to see.
type ClassifiedError struct {
	Class         ErrorClass
	InternalError error
	ErrorCode     string
	ClientMessage string
	OperationName string
}

type ErrorClassifier struct {
	logger *slog.Logger
}

func NewErrorClassifier(logger *slog.Logger) *ErrorClassifier {
	return &ErrorClassifier{logger: logger}
}

var errorPool = sync.Pool{
	New: func() interface{} {
		return &ClassifiedError{}
	},
}

func (ec *ErrorClassifier) Classify(err error, operation string) *ClassifiedError {
	classified := errorPool.Get().(*ClassifiedError)
	classified.InternalError = err
	classified.OperationName = operation

	switch {
	case errors.Is(err, ErrInvalidInput):
		classified.Class = ClassValidation
		classified.ErrorCode = "VALIDATION_ERROR"
		classified.ClientMessage = "The request contains invalid parameters"
	case errors.Is(err, ErrProviderAPI):
		classified.Class = ClassProvider
		classified.ErrorCode = "PROVIDER_API_ERROR"
		classified.ClientMessage = err.Error()
	case errors.Is(err, ErrGenerationFailed):
		classified.Class = ClassGeneration
		classified.ErrorCode = "GENERATION_FAILED"
		classified.ClientMessage = err.Error()
	case errors.Is(err, ErrExtractionFailed):
		classified.Class = ClassExtraction
		classified.ErrorCode = "EXTRACTION_FAILED"
		classified.ClientMessage = err.Error()
	case errors.Is(err, ErrTranscriptionFailed):
		classified.Class = ClassTranscription
		classified.ErrorCode = "TRANSCRIPTION_FAILED"
		classified.ClientMessage = err.Error()
	case errors.Is(err, ErrUnavailable):
		classified.Class = ClassUnavailable
		classified.ErrorCode = "SERVICE_UNAVAILABLE"
		classified.ClientMessage = "The service is temporarily unavailable"
	default:
		classified.Class = ClassInternal
		classified.ErrorCode = "INTERNAL_SERVER_ERROR"
		classified.ClientMessage = "An unexpected internal error occurred"
	}

	return classified
}

// errorBody is the JSON error envelope returned to clients.
type errorBody struct {
	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// LogAndRespond logs the internal error detail and writes the sanitized
// error body with the status mapped from the error class.
func (ec *ErrorClassifier) LogAndRespond(ctx context.Context, w http.ResponseWriter, classified *ClassifiedError) {
	defer ec.putError(classified)

	ec.logger.ErrorContext(ctx, "operation failed",
		"operation", classified.OperationName,
		"error_class", int(classified.Class),
		"error_code", classified.ErrorCode,
		"internal_error", classified.InternalError.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ec.toHTTPStatus(classified))
	_ = json.NewEncoder(w).Encode(errorBody{
		Success:      false,
		ErrorCode:    classified.ErrorCode,
		ErrorMessage: classified.ClientMessage,
	})
}

func (ec *ErrorClassifier) toHTTPStatus(classified *ClassifiedError) int {
	switch classified.Class {
	case ClassValidation:
		return http.StatusBadRequest
	case ClassProvider:
		return http.StatusBadGateway
	case ClassUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (ec *ErrorClassifier) putError(err *ClassifiedError) {
	err.InternalError = nil
	err.ErrorCode = ""
	err.ClientMessage = ""
	err.OperationName = ""
	errorPool.Put(err)
}
