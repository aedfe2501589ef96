package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-ai/textpipe/internal/adapters/llm"
	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	apperrors "github.com/veridian-ai/textpipe/internal/errors"
)

type fakeRuntime struct {
	calls     int
	lastInput *bedrockruntime.InvokeModelInput
	delay     time.Duration
	body      []byte
	err       error
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls++
	f.lastInput = params
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

type fakeControl struct {
	calls int
	err   error
}

func (f *fakeControl) ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &bedrock.ListFoundationModelsOutput{}, nil
}

func testBedrockConfig() config.BedrockConfig {
	return config.BedrockConfig{
		ModelID:     "anthropic.claude-3-5-sonnet-20241022-v2:0",
		MaxTokens:   512,
		Temperature: 0.5,
		TopP:        0.9,
		TopK:        250,
		BasePrompt:  "You are a helpful AI assistant. Please respond to: {prompt}",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envelope(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestGenerateSuccess(t *testing.T) {
	runtime := &fakeRuntime{
		body: envelope(t, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "Waves crash and retreat..."}},
			"usage":   map[string]int{"input_tokens": 19, "output_tokens": 12},
		}),
	}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	resp, err := adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "Write a haiku about the sea."})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, 1, runtime.calls)
	assert.Equal(t, "Waves crash and retreat...", resp.GeneratedText)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", resp.ModelID)
	assert.Equal(t, 512, resp.MaxTokens)
	assert.Equal(t, 0.5, resp.Temperature)
	assert.Equal(t, map[string]int{"input_tokens": 19, "output_tokens": 12}, resp.Usage)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 0.0)
}

func TestGenerateSubstitutesPromptIntoTemplate(t *testing.T) {
	runtime := &fakeRuntime{
		body: envelope(t, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "ok"}},
		}),
	}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "Write a haiku about the sea."})
	require.NoError(t, err)
	require.NotNil(t, runtime.lastInput)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", *runtime.lastInput.ModelId)
	assert.Equal(t, "application/json", *runtime.lastInput.ContentType)

	var sent struct {
		AnthropicVersion string  `json:"anthropic_version"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float64 `json:"temperature"`
		TopP             float64 `json:"top_p"`
		TopK             int     `json:"top_k"`
		Messages         []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(runtime.lastInput.Body, &sent))
	assert.Equal(t, "bedrock-2023-05-31", sent.AnthropicVersion)
	assert.Equal(t, 512, sent.MaxTokens)
	assert.Equal(t, 0.5, sent.Temperature)
	assert.Equal(t, 0.9, sent.TopP)
	assert.Equal(t, 250, sent.TopK)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "user", sent.Messages[0].Role)
	require.Len(t, sent.Messages[0].Content, 1)
	assert.Equal(t, "text", sent.Messages[0].Content[0].Type)
	assert.Equal(t, "You are a helpful AI assistant. Please respond to: Write a haiku about the sea.", sent.Messages[0].Content[0].Text)
}

func TestGenerateMeasuresProcessingTime(t *testing.T) {
	runtime := &fakeRuntime{
		delay: 30 * time.Millisecond,
		body: envelope(t, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "slow"}},
		}),
	}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	resp, err := adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 30.0)
}

func TestGenerateProviderError(t *testing.T) {
	runtime := &fakeRuntime{
		err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "account is not authorized"},
	}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	resp, err := adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, apperrors.ErrProviderAPI)
	assert.Contains(t, err.Error(), "account is not authorized")
}

func TestGenerateTransportError(t *testing.T) {
	runtime := &fakeRuntime{err: context.DeadlineExceeded}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
}

func TestGenerateMalformedEnvelope(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("not json at all")},
		{"missing content", []byte(`{}`)},
		{"empty content list", []byte(`{"content":[]}`)},
		{"first block not text", []byte(`{"content":[{"type":"tool_use"}]}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runtime := &fakeRuntime{body: tc.body}
			adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
			require.NoError(t, err)

			resp, err := adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
		})
	}
}

func TestGenerateOmittedUsageIsAbsent(t *testing.T) {
	runtime := &fakeRuntime{
		body: envelope(t, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "no usage here"}},
		}),
	}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	resp, err := adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Nil(t, resp.Usage)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	runtime := &fakeRuntime{}
	adapter, err := llm.New(runtime, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		_, err := adapter.Generate(context.Background(), domain.GenerationRequest{Prompt: prompt})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
	assert.Zero(t, runtime.calls, "no network call may happen for an invalid prompt")
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	cfg := testBedrockConfig()
	cfg.BasePrompt = "a template without a placeholder"
	_, err := llm.New(&fakeRuntime{}, &fakeControl{}, cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")

	cfg = testBedrockConfig()
	cfg.ModelID = ""
	_, err = llm.New(&fakeRuntime{}, &fakeControl{}, cfg, discardLogger())
	require.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	adapter, err := llm.New(&fakeRuntime{}, &fakeControl{}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)
	assert.True(t, adapter.TestConnection(context.Background()))

	adapter, err = llm.New(&fakeRuntime{}, &fakeControl{err: &smithy.GenericAPIError{Code: "Throttling", Message: "slow down"}}, testBedrockConfig(), discardLogger())
	require.NoError(t, err)
	assert.False(t, adapter.TestConnection(context.Background()))
}
