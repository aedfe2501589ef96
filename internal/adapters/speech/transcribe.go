package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	trtypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/fetch"
	"github.com/veridian-ai/textpipe/pkg/execution"
)

var supportedFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"m4a":  true,
	"flac": true,
	"ogg":  true,
}

// TranscriptionClient abstracts the transcription job calls for testing.
type TranscriptionClient interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// ObjectStore abstracts the staging upload for testing.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Adapter downloads an audio file, stages it in object storage and runs a
// managed transcription job to completion.
type Adapter struct {
	transcriber TranscriptionClient
	store       ObjectStore
	downloader  *fetch.Downloader
	cfg         config.SpeechConfig
	logger      *slog.Logger
}

func New(transcriber TranscriptionClient, store ObjectStore, downloader *fetch.Downloader, cfg config.SpeechConfig, logger *slog.Logger) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("speech staging bucket is not configured")
	}
	return &Adapter{
		transcriber: transcriber,
		store:       store,
		downloader:  downloader,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Transcribe fetches the audio at the request URL, stages it, runs a
// transcription job and decodes the transcript document.
func (a *Adapter) Transcribe(ctx context.Context, req domain.TranscriptionRequest) (*domain.TranscriptionResponse, error) {
	start := time.Now()

	audioBytes, info, err := a.downloader.Fetch(ctx, req.AudioURL, "")
	if err != nil {
		a.logger.ErrorContext(ctx, "audio download failed", "url", req.AudioURL, "error", err)
		return nil, err
	}
	if !supportedFormats[info.Format] {
		return nil, fmt.Errorf("%w: unsupported audio format %q", apperrors.ErrInvalidInput, info.Format)
	}

	jobID := uuid.New().String()
	objectKey := fmt.Sprintf("%s/%s.%s", a.cfg.KeyPrefix, jobID, info.Format)

	if _, err := a.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(audioBytes),
		ContentType: aws.String(info.ContentType),
	}); err != nil {
		a.logger.ErrorContext(ctx, "audio staging failed", "bucket", a.cfg.Bucket, "key", objectKey, "error", err)
		return nil, a.classify(err, "staging audio")
	}

	jobName := "textpipe-" + jobID
	mediaURI := fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, objectKey)

	a.logger.InfoContext(ctx, "starting transcription job",
		"job_name", jobName,
		"media_uri", mediaURI,
		"format", info.Format,
	)

	if _, err := a.transcriber.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		LanguageCode:         trtypes.LanguageCode(a.cfg.LanguageCode),
		MediaFormat:          trtypes.MediaFormat(info.Format),
		Media:                &trtypes.Media{MediaFileUri: aws.String(mediaURI)},
	}); err != nil {
		a.logger.ErrorContext(ctx, "failed to start transcription job", "job_name", jobName, "error", err)
		return nil, a.classify(err, "starting transcription job")
	}

	job, err := execution.WithTimeout(ctx, a.cfg.JobTimeout, func(ctx context.Context) (*trtypes.TranscriptionJob, error) {
		return a.waitForJob(ctx, jobName)
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "transcription job did not complete", "job_name", jobName, "error", err)
		return nil, a.classify(err, "waiting for transcription job")
	}

	if job.Transcript == nil || job.Transcript.TranscriptFileUri == nil {
		return nil, fmt.Errorf("%w: completed job carries no transcript location", apperrors.ErrTranscriptionFailed)
	}

	// The transcript URI is a presigned link that can be briefly unavailable
	// right after job completion.
	doc, err := execution.WithRetry(ctx, 3, 200*time.Millisecond, 2*time.Second, func(ctx context.Context) ([]byte, error) {
		b, _, err := a.downloader.Fetch(ctx, *job.Transcript.TranscriptFileUri, "")
		return b, err
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "transcript download failed", "job_name", jobName, "error", err)
		return nil, fmt.Errorf("%w: fetching transcript document: %v", apperrors.ErrTranscriptionFailed, err)
	}

	text, words, confidence, err := decodeTranscript(doc, req.EnableWordTimestamps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTranscriptionFailed, err)
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	a.logger.InfoContext(ctx, "audio transcribed",
		"job_name", jobName,
		"transcript_chars", len(text),
		"total_confidence", confidence,
		"processing_time_ms", elapsed,
	)

	return &domain.TranscriptionResponse{
		Success:          true,
		TranscribedText:  text,
		WordTimestamps:   words,
		TotalConfidence:  confidence,
		ProcessingTimeMs: elapsed,
		AudioInfo:        info,
	}, nil
}

func (a *Adapter) waitForJob(ctx context.Context, jobName string) (*trtypes.TranscriptionJob, error) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		out, err := a.transcriber.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return nil, err
		}

		job := out.TranscriptionJob
		switch job.TranscriptionJobStatus {
		case trtypes.TranscriptionJobStatusCompleted:
			return job, nil
		case trtypes.TranscriptionJobStatusFailed:
			reason := "unknown reason"
			if job.FailureReason != nil {
				reason = *job.FailureReason
			}
			return nil, fmt.Errorf("transcription job failed: %s", reason)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) classify(err error, action string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", apperrors.ErrProviderAPI, apiErr.ErrorMessage())
	}
	return fmt.Errorf("%w: %s: %v", apperrors.ErrTranscriptionFailed, action, err)
}

// transcriptDocument mirrors the engine's transcript JSON. Numeric fields
// arrive as strings.
type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
		Items []struct {
			Type         string `json:"type"`
			StartTime    string `json:"start_time"`
			EndTime      string `json:"end_time"`
			Alternatives []struct {
				Confidence string `json:"confidence"`
				Content    string `json:"content"`
			} `json:"alternatives"`
		} `json:"items"`
	} `json:"results"`
}

func decodeTranscript(doc []byte, withWords bool) (string, []domain.WordTimestamp, float64, error) {
	var parsed transcriptDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return "", nil, 0, fmt.Errorf("malformed transcript document: %v", err)
	}
	if len(parsed.Results.Transcripts) == 0 {
		return "", nil, 0, fmt.Errorf("malformed transcript document: no transcript entries")
	}

	text := parsed.Results.Transcripts[0].Transcript

	var words []domain.WordTimestamp
	var confidenceSum float64
	var wordCount int

	for _, item := range parsed.Results.Items {
		if item.Type != "pronunciation" || len(item.Alternatives) == 0 {
			continue
		}
		alt := item.Alternatives[0]
		confidence, _ := strconv.ParseFloat(alt.Confidence, 64)
		confidence *= 100

		confidenceSum += confidence
		wordCount++

		if withWords {
			startTime, _ := strconv.ParseFloat(item.StartTime, 64)
			endTime, _ := strconv.ParseFloat(item.EndTime, 64)
			words = append(words, domain.WordTimestamp{
				Word:       alt.Content,
				StartTime:  startTime,
				EndTime:    endTime,
				Confidence: confidence,
			})
		}
	}

	totalConfidence := 0.0
	if wordCount > 0 {
		totalConfidence = confidenceSum / float64(wordCount)
	} else if text != "" {
		totalConfidence = 100
	}

	return text, words, totalConfidence, nil
}
