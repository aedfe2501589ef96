package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/textract"
	txtypes "github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"

	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/fetch"
	"github.com/veridian-ai/textpipe/pkg/patterns/circuitbreaker"
)

// A run of engine failures opens the circuit so callers fail fast instead of
// queueing downloads against a degraded backend.
const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// DocumentDetector abstracts the Textract text detection call for testing.
type DocumentDetector interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Adapter downloads an image and delegates recognition to the OCR engine.
type Adapter struct {
	detector   DocumentDetector
	downloader *fetch.Downloader
	breaker    *circuitbreaker.Breaker[*textract.DetectDocumentTextOutput]
	cfg        config.OCRConfig
	logger     *slog.Logger
}

func New(detector DocumentDetector, downloader *fetch.Downloader, cfg config.OCRConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		detector:   detector,
		downloader: downloader,
		breaker:    circuitbreaker.New[*textract.DetectDocumentTextOutput](breakerMaxFailures, breakerResetTimeout),
		cfg:        cfg,
		logger:     logger,
	}
}

// Extract fetches the image at the request URL, runs text detection over the
// raw bytes and aggregates line-level results above the confidence threshold.
func (a *Adapter) Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error) {
	start := time.Now()

	imageBytes, info, err := a.downloader.Fetch(ctx, req.ImageURL, "image/")
	if err != nil {
		a.logger.ErrorContext(ctx, "image download failed", "url", req.ImageURL, "error", err)
		return nil, err
	}

	a.logger.InfoContext(ctx, "running text detection", "url", req.ImageURL, "size_bytes", info.SizeBytes)

	out, err := a.breaker.Execute(ctx, func(ctx context.Context) (*textract.DetectDocumentTextOutput, error) {
		return a.detector.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
			Document: &txtypes.Document{Bytes: imageBytes},
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			a.logger.WarnContext(ctx, "ocr engine circuit is open")
			return nil, fmt.Errorf("%w: recognition backend is failing, request rejected", apperrors.ErrUnavailable)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			a.logger.ErrorContext(ctx, "ocr engine rejected document",
				"provider_code", apiErr.ErrorCode(),
				"error", apiErr.ErrorMessage(),
			)
			return nil, fmt.Errorf("%w: %s", apperrors.ErrProviderAPI, apiErr.ErrorMessage())
		}
		a.logger.ErrorContext(ctx, "text detection failed", "error", err)
		return nil, fmt.Errorf("%w: detecting document text: %v", apperrors.ErrExtractionFailed, err)
	}

	blocks := make([]domain.TextBlock, 0, len(out.Blocks))
	parts := make([]string, 0, len(out.Blocks))
	var confidenceSum float64

	for _, block := range out.Blocks {
		if block.BlockType != txtypes.BlockTypeLine || block.Text == nil {
			continue
		}
		text := strings.TrimSpace(*block.Text)
		if text == "" {
			continue
		}

		var confidence float64
		if block.Confidence != nil {
			confidence = float64(*block.Confidence)
		}
		if confidence < req.ConfidenceThreshold {
			continue
		}

		tb := domain.TextBlock{Text: text, Confidence: confidence}
		if block.Geometry != nil && block.Geometry.BoundingBox != nil {
			bb := block.Geometry.BoundingBox
			tb.BoundingBox = &domain.BoundingBox{
				Left:   float64(bb.Left),
				Top:    float64(bb.Top),
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
			}
		}

		blocks = append(blocks, tb)
		parts = append(parts, text)
		confidenceSum += confidence
	}

	var totalConfidence float64
	if len(blocks) > 0 {
		totalConfidence = confidenceSum / float64(len(blocks))
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	a.logger.InfoContext(ctx, "text extracted",
		"url", req.ImageURL,
		"block_count", len(blocks),
		"total_confidence", totalConfidence,
		"processing_time_ms", elapsed,
	)

	return &domain.ExtractionResponse{
		Success:          true,
		ExtractedText:    strings.Join(parts, " "),
		TextBlocks:       blocks,
		TotalConfidence:  totalConfidence,
		ProcessingTimeMs: elapsed,
		ImageInfo:        info,
	}, nil
}
