package domain

import "context"

// TranscriptionRequest asks for speech-to-text over an audio file fetched
// from a URL.
type TranscriptionRequest struct {
	AudioURL             string `json:"audio_url" validate:"required,url"`
	EnableWordTimestamps bool   `json:"enable_word_timestamps"`
}

// WordTimestamp is a single recognized word with timing and confidence.
type WordTimestamp struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// TranscriptionResponse is the result of one transcription call.
type TranscriptionResponse struct {
	Success          bool            `json:"success"`
	TranscribedText  string          `json:"transcribed_text"`
	WordTimestamps   []WordTimestamp `json:"word_timestamps,omitempty"`
	TotalConfidence  float64         `json:"total_confidence"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	AudioInfo        MediaInfo       `json:"audio_info"`
}

// Transcriber delegates audio transcription to a speech engine.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}
