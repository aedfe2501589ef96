package ocr_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	txtypes "github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-ai/textpipe/internal/adapters/ocr"
	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/fetch"
)

type fakeDetector struct {
	lastInput *textract.DetectDocumentTextInput
	out       *textract.DetectDocumentTextOutput
	err       error
}

func (f *fakeDetector) DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func imageServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
}

func lineBlock(text string, confidence float32) txtypes.Block {
	return txtypes.Block{
		BlockType:  txtypes.BlockTypeLine,
		Text:       aws.String(text),
		Confidence: aws.Float32(confidence),
		Geometry: &txtypes.Geometry{
			BoundingBox: &txtypes.BoundingBox{Left: 0.1, Top: 0.2, Width: 0.5, Height: 0.05},
		},
	}
}

func newAdapter(detector *fakeDetector) *ocr.Adapter {
	downloader := fetch.NewDownloader(5*time.Second, 1<<20, discardLogger())
	return ocr.New(detector, downloader, config.OCRConfig{MaxImageSizeMB: 1}, discardLogger())
}

func TestExtractSuccess(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	srv := imageServer(t, image)
	defer srv.Close()

	detector := &fakeDetector{out: &textract.DetectDocumentTextOutput{
		Blocks: []txtypes.Block{
			lineBlock("INVOICE", 99.2),
			{BlockType: txtypes.BlockTypeWord, Text: aws.String("INVOICE"), Confidence: aws.Float32(99.2)},
			lineBlock("Total: $42.00", 97.8),
		},
	}}

	resp, err := newAdapter(detector).Extract(context.Background(), domain.ExtractionRequest{
		ImageURL: srv.URL + "/invoice.png",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "INVOICE Total: $42.00", resp.ExtractedText)
	require.Len(t, resp.TextBlocks, 2)
	assert.InDelta(t, 98.5, resp.TotalConfidence, 0.01)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 0.0)
	assert.Equal(t, "png", resp.ImageInfo.Format)
	assert.Equal(t, int64(len(image)), resp.ImageInfo.SizeBytes)

	require.NotNil(t, detector.lastInput)
	assert.Equal(t, image, detector.lastInput.Document.Bytes)

	bb := resp.TextBlocks[0].BoundingBox
	require.NotNil(t, bb)
	assert.InDelta(t, 0.1, bb.Left, 0.001)
	assert.InDelta(t, 0.05, bb.Height, 0.001)
}

func TestExtractAppliesConfidenceThreshold(t *testing.T) {
	srv := imageServer(t, []byte("img"))
	defer srv.Close()

	detector := &fakeDetector{out: &textract.DetectDocumentTextOutput{
		Blocks: []txtypes.Block{
			lineBlock("keep me", 95),
			lineBlock("drop me", 40),
		},
	}}

	resp, err := newAdapter(detector).Extract(context.Background(), domain.ExtractionRequest{
		ImageURL:            srv.URL + "/doc.png",
		ConfidenceThreshold: 80,
	})
	require.NoError(t, err)

	require.Len(t, resp.TextBlocks, 1)
	assert.Equal(t, "keep me", resp.ExtractedText)
}

func TestExtractEmptyDocument(t *testing.T) {
	srv := imageServer(t, []byte("img"))
	defer srv.Close()

	detector := &fakeDetector{out: &textract.DetectDocumentTextOutput{}}

	resp, err := newAdapter(detector).Extract(context.Background(), domain.ExtractionRequest{
		ImageURL: srv.URL + "/blank.png",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.ExtractedText)
	assert.Empty(t, resp.TextBlocks)
	assert.Zero(t, resp.TotalConfidence)
}

func TestExtractProviderError(t *testing.T) {
	srv := imageServer(t, []byte("img"))
	defer srv.Close()

	detector := &fakeDetector{err: &smithy.GenericAPIError{
		Code:    "UnsupportedDocumentException",
		Message: "document format is not supported",
	}}

	_, err := newAdapter(detector).Extract(context.Background(), domain.ExtractionRequest{
		ImageURL: srv.URL + "/doc.png",
	})
	require.ErrorIs(t, err, apperrors.ErrProviderAPI)
	assert.Contains(t, err.Error(), "document format is not supported")
}

func TestExtractDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "not an image")
	}))
	defer srv.Close()

	detector := &fakeDetector{}
	_, err := newAdapter(detector).Extract(context.Background(), domain.ExtractionRequest{
		ImageURL: srv.URL + "/doc.txt",
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Nil(t, detector.lastInput)
}

func TestExtractFailsFastAfterRepeatedEngineFailures(t *testing.T) {
	srv := imageServer(t, []byte("img"))
	defer srv.Close()

	detector := &fakeDetector{err: &smithy.GenericAPIError{
		Code:    "InternalServerError",
		Message: "engine is down",
	}}
	adapter := newAdapter(detector)
	req := domain.ExtractionRequest{ImageURL: srv.URL + "/doc.png"}

	for i := 0; i < 5; i++ {
		_, err := adapter.Extract(context.Background(), req)
		require.ErrorIs(t, err, apperrors.ErrProviderAPI)
	}

	_, err := adapter.Extract(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrUnavailable)
}
