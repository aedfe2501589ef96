package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
	pkgvalidator "github.com/veridian-ai/textpipe/pkg/validator"
)

const anthropicVersion = "bedrock-2023-05-31"

// ModelInvoker abstracts the runtime InvokeModel call for testing.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// ModelLister abstracts the control-plane model listing call used by the
// health probe.
type ModelLister interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// Adapter translates generic generation requests into Bedrock InvokeModel
// calls using the Anthropic-native request shape, and translates the reply
// envelope back. The client handles are established once and shared read-only
// across calls; the adapter holds no other state.
type Adapter struct {
	runtime ModelInvoker
	control ModelLister
	cfg     config.BedrockConfig
	logger  *slog.Logger
}

// New creates an Adapter. It fails when the base prompt template lacks the
// prompt placeholder or the model id is empty, so a misconfigured service
// refuses to start instead of failing every call.
func New(runtime ModelInvoker, control ModelLister, cfg config.BedrockConfig, logger *slog.Logger) (*Adapter, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock model id is not configured")
	}
	if strings.Count(cfg.BasePrompt, pkgvalidator.PromptPlaceholder) != 1 {
		return nil, fmt.Errorf("base prompt template must contain the %s placeholder exactly once", pkgvalidator.PromptPlaceholder)
	}
	return &Adapter{
		runtime: runtime,
		control: control,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// modelRequest is the Anthropic-native request body for Bedrock.
type modelRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	TopK             int           `json:"top_k"`
	Messages         []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// modelEnvelope is the provider's reply body. Usage stays a pointer so an
// omitted block is distinguishable from a zero one.
type modelEnvelope struct {
	Content []contentBlock `json:"content"`
	Usage   *tokenUsage    `json:"usage"`
}

type tokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Generate builds the full prompt from the configured template, invokes the
// model synchronously and parses the reply envelope. Sampling parameters come
// from configuration; the request supplies only the prompt text.
func (a *Adapter) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt must not be empty", apperrors.ErrInvalidInput)
	}

	start := time.Now()

	fullPrompt, err := a.buildPrompt(req.Prompt)
	if err != nil {
		a.logger.ErrorContext(ctx, "prompt construction failed", "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGenerationFailed, err)
	}

	body, err := json.Marshal(modelRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        a.cfg.MaxTokens,
		Temperature:      a.cfg.Temperature,
		TopP:             a.cfg.TopP,
		TopK:             a.cfg.TopK,
		Messages: []chatMessage{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: fullPrompt}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: serializing request body: %v", apperrors.ErrGenerationFailed, err)
	}

	a.logger.InfoContext(ctx, "invoking model",
		"model_id", a.cfg.ModelID,
		"max_tokens", a.cfg.MaxTokens,
	)

	out, err := a.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.cfg.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			a.logger.ErrorContext(ctx, "provider rejected model invocation",
				"model_id", a.cfg.ModelID,
				"provider_code", apiErr.ErrorCode(),
				"error", apiErr.ErrorMessage(),
			)
			return nil, fmt.Errorf("%w: %s", apperrors.ErrProviderAPI, apiErr.ErrorMessage())
		}
		a.logger.ErrorContext(ctx, "model invocation failed", "model_id", a.cfg.ModelID, "error", err)
		return nil, fmt.Errorf("%w: invoking model: %v", apperrors.ErrGenerationFailed, err)
	}

	var envelope modelEnvelope
	if err := json.Unmarshal(out.Body, &envelope); err != nil {
		a.logger.ErrorContext(ctx, "failed to decode model reply", "model_id", a.cfg.ModelID, "error", err)
		return nil, fmt.Errorf("%w: malformed envelope: %v", apperrors.ErrGenerationFailed, err)
	}
	if len(envelope.Content) == 0 || envelope.Content[0].Type != "text" {
		a.logger.ErrorContext(ctx, "model reply carried no text content", "model_id", a.cfg.ModelID)
		return nil, fmt.Errorf("%w: malformed envelope: reply contains no text content", apperrors.ErrGenerationFailed)
	}

	// Multi-part replies are not expected from this model family; only the
	// first content element is read.
	generated := envelope.Content[0].Text

	var usage map[string]int
	if envelope.Usage != nil {
		usage = map[string]int{
			"input_tokens":  envelope.Usage.InputTokens,
			"output_tokens": envelope.Usage.OutputTokens,
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	a.logger.InfoContext(ctx, "text generated",
		"model_id", a.cfg.ModelID,
		"output_chars", len(generated),
		"processing_time_ms", elapsed,
	)

	return &domain.GenerationResponse{
		GeneratedText:    generated,
		ModelID:          a.cfg.ModelID,
		MaxTokens:        a.cfg.MaxTokens,
		Temperature:      a.cfg.Temperature,
		ProcessingTimeMs: elapsed,
		Usage:            usage,
	}, nil
}

// TestConnection probes the remote service by listing available models. It
// never propagates a failure; any error is logged and reported as false.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	out, err := a.control.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		a.logger.ErrorContext(ctx, "connection test failed", "error", err)
		return false
	}
	a.logger.InfoContext(ctx, "connection test successful", "model_count", len(out.ModelSummaries))
	return true
}

func (a *Adapter) buildPrompt(prompt string) (string, error) {
	if !strings.Contains(a.cfg.BasePrompt, pkgvalidator.PromptPlaceholder) {
		return "", fmt.Errorf("base prompt template is missing the %s placeholder", pkgvalidator.PromptPlaceholder)
	}
	return strings.Replace(a.cfg.BasePrompt, pkgvalidator.PromptPlaceholder, prompt, 1), nil
}
