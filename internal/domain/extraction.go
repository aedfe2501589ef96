package domain

import "context"

// ExtractionRequest asks for OCR over an image fetched from a URL.
type ExtractionRequest struct {
	ImageURL            string  `json:"image_url" validate:"required,url"`
	ConfidenceThreshold float64 `json:"confidence_threshold" validate:"gte=0,lte=100"`
}

// BoundingBox holds normalized (0-1) geometry as reported by the OCR engine.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextBlock is a single detected line of text.
type TextBlock struct {
	Text        string       `json:"text"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

// ExtractionResponse is the result of one OCR call.
type ExtractionResponse struct {
	Success          bool        `json:"success"`
	ExtractedText    string      `json:"extracted_text"`
	TextBlocks       []TextBlock `json:"text_blocks"`
	TotalConfidence  float64     `json:"total_confidence"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
	ImageInfo        MediaInfo   `json:"image_info"`
}

// MediaInfo describes a fetched media object.
type MediaInfo struct {
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// TextExtractor delegates image text recognition to an OCR engine.
type TextExtractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResponse, error)
}
