package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/validation"
	"github.com/veridian-ai/textpipe/pkg/cache"
)

// The generation health probe hits the provider's control plane; its result
// is cached briefly so an aggressive poller does not turn into API traffic.
const (
	probeCacheKey = "llm"
	probeCacheTTL = 30 * time.Second
)

type handler struct {
	svcs       Services
	validator  *validation.RequestValidator
	recorder   domain.AuditRecorder
	classifier *apperrors.ErrorClassifier
	probeCache *cache.Cache[string, bool]
	logger     *slog.Logger
	version    string
}

func (h *handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: malformed JSON body: %v", apperrors.ErrInvalidInput, err), "llm.generate")
		return
	}
	if err := h.validator.ValidateGenerationRequest(&req); err != nil {
		h.respondError(w, r, err, "llm.generate")
		return
	}

	h.logger.InfoContext(ctx, "received generation request", "prompt_chars", len(req.Prompt))

	resp, err := h.svcs.Generator.Generate(ctx, req)
	h.recorder.Record(ctx, "llm.generate", msSince(start), err == nil, err)
	if err != nil {
		h.respondError(w, r, err, "llm.generate")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleLLMHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	healthy, found := h.probeCache.Get(ctx, probeCacheKey)
	if !found {
		healthy = h.svcs.Generator.TestConnection(ctx)
		h.probeCache.Set(ctx, probeCacheKey, healthy, 0)
	}

	if healthy {
		h.writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"message": "generation service is operational",
		})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":  "unhealthy",
		"message": "generation service cannot reach the inference backend",
	})
}

func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.ExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: malformed JSON body: %v", apperrors.ErrInvalidInput, err), "ocr.extract")
		return
	}
	if err := h.validator.ValidateExtractionRequest(&req); err != nil {
		h.respondError(w, r, err, "ocr.extract")
		return
	}

	resp, err := h.svcs.Extractor.Extract(ctx, req)
	h.recorder.Record(ctx, "ocr.extract", msSince(start), err == nil, err)
	if err != nil {
		h.respondError(w, r, err, "ocr.extract")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.TranscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: malformed JSON body: %v", apperrors.ErrInvalidInput, err), "speech.transcribe")
		return
	}
	if err := h.validator.ValidateTranscriptionRequest(&req); err != nil {
		h.respondError(w, r, err, "speech.transcribe")
		return
	}

	resp, err := h.svcs.Transcriber.Transcribe(ctx, req)
	h.recorder.Record(ctx, "speech.transcribe", msSince(start), err == nil, err)
	if err != nil {
		h.respondError(w, r, err, "speech.transcribe")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "textpipe",
		"version": h.version,
	})
}

func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"name":        "textpipe",
		"version":     h.version,
		"description": "Text extraction, transcription and generation API",
	})
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	h.classifier.LogAndRespond(r.Context(), w, h.classifier.Classify(err, operation))
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response body", "error", err)
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
