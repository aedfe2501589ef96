package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Downloader fetches media objects over HTTP with a size cap and a
// content-type check. The cap rejects oversized bodies instead of
// truncating them.
type Downloader struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewDownloader creates a Downloader with the given per-request timeout and
// maximum body size in bytes.
func NewDownloader(timeout time.Duration, maxBytes int64, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Fetch downloads rawURL and returns the body bytes with media info.
// When typePrefix is non-empty the response Content-Type must start with it.
func (d *Downloader) Fetch(ctx context.Context, rawURL, typePrefix string) ([]byte, domain.MediaInfo, error) {
	var info domain.MediaInfo

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, info, fmt.Errorf("%w: unsupported url scheme in %q", apperrors.ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, info, fmt.Errorf("%w: building download request: %v", apperrors.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, info, fmt.Errorf("%w: download failed: %v", apperrors.ErrInvalidInput, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.Error("failed to close download body", "url", rawURL, "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, info, fmt.Errorf("%w: download returned status %d", apperrors.ErrInvalidInput, resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if typePrefix != "" && !strings.HasPrefix(contentType, typePrefix) {
		return nil, info, fmt.Errorf("%w: url does not point to %s content (content-type: %s)", apperrors.ErrInvalidInput, typePrefix, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, info, fmt.Errorf("%w: reading download body: %v", apperrors.ErrInvalidInput, err)
	}
	if int64(len(body)) > d.maxBytes {
		return nil, info, fmt.Errorf("%w: body exceeds maximum allowed size of %d bytes", apperrors.ErrInvalidInput, d.maxBytes)
	}

	info = domain.MediaInfo{
		Format:      FormatOf(rawURL, contentType),
		ContentType: contentType,
		SizeBytes:   int64(len(body)),
	}
	return body, info, nil
}

var contentTypeFormats = map[string]string{
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/mpeg":  "mp3",
	"audio/mp4":   "m4a",
	"audio/flac":  "flac",
	"audio/ogg":   "ogg",
	"image/jpeg":  "jpeg",
	"image/png":   "png",
	"image/bmp":   "bmp",
	"image/tiff":  "tiff",
	"image/webp":  "webp",
}

// FormatOf determines a short media format name from the URL extension,
// falling back to the content type.
func FormatOf(rawURL, contentType string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(parsed.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if format, ok := contentTypeFormats[mediaType]; ok {
			return format
		}
	}
	return ""
}
