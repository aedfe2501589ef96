package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	customvalidator "github.com/veridian-ai/textpipe/pkg/validator"
)

// Config holds the application configuration.
type Config struct {
	Server         ServerConfig  `mapstructure:"server"`
	AWS            AWSConfig     `mapstructure:"aws"     validate:"required"`
	Bedrock        BedrockConfig `mapstructure:"bedrock" validate:"required"`
	OCR            OCRConfig     `mapstructure:"ocr"`
	Speech         SpeechConfig  `mapstructure:"speech"`
	Audit          AuditConfig   `mapstructure:"audit"`
	ServiceVersion string
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gte=1024,lte=65535"`
	Mode            string        `mapstructure:"mode" validate:"required,oneof=development production"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AWSConfig holds the region, service identifier and credential material for
// the remote inference and recognition engines.
type AWSConfig struct {
	Region          string `mapstructure:"region"       validate:"required"`
	ServiceName     string `mapstructure:"service_name"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// BedrockConfig holds the model identifier, sampling defaults and the base
// prompt template. Sampling parameters apply to every call; per-call requests
// carry only the prompt text.
type BedrockConfig struct {
	ModelID     string  `mapstructure:"model_id"    validate:"required"`
	MaxTokens   int     `mapstructure:"max_tokens"  validate:"required,gte=1"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
	TopP        float64 `mapstructure:"top_p"       validate:"gte=0,lte=1"`
	TopK        int     `mapstructure:"top_k"       validate:"gte=0"`
	BasePrompt  string  `mapstructure:"base_prompt" validate:"required,prompttemplate"`
}

// OCRConfig holds limits for the image extraction path.
type OCRConfig struct {
	MaxImageSizeMB  int           `mapstructure:"max_image_size_mb" validate:"required,gte=1"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// SpeechConfig holds limits and staging settings for the transcription path.
type SpeechConfig struct {
	MaxAudioSizeMB  int           `mapstructure:"max_audio_size_mb" validate:"required,gte=1"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	Bucket          string        `mapstructure:"bucket" validate:"required"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	LanguageCode    string        `mapstructure:"language_code" validate:"required"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
}

// AuditConfig holds the request-audit trail configuration.
type AuditConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	DatabaseURL       string `mapstructure:"database_url" validate:"required_if=Enabled true"`
	ChannelBufferSize int    `mapstructure:"channel_buffer_size"`
	WorkerCount       int    `mapstructure:"worker_count"`
}

// Load loads the configuration from a file and environment variables.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("server.port", 8000)
	vip.SetDefault("server.mode", "development")
	vip.SetDefault("server.read_timeout", "30s")
	vip.SetDefault("server.write_timeout", "120s")
	vip.SetDefault("server.shutdown_timeout", "10s")
	vip.SetDefault("aws.service_name", "bedrock-runtime")
	// Registering empty defaults makes the keys visible to AutomaticEnv, so
	// AWS_REGION / AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY resolve without a
	// config file.
	vip.SetDefault("aws.region", "")
	vip.SetDefault("aws.access_key_id", "")
	vip.SetDefault("aws.secret_access_key", "")
	vip.SetDefault("aws.session_token", "")
	vip.SetDefault("speech.bucket", "")
	vip.SetDefault("bedrock.model_id", "anthropic.claude-3-5-sonnet-20241022-v2:0")
	vip.SetDefault("bedrock.max_tokens", 512)
	vip.SetDefault("bedrock.temperature", 0.5)
	vip.SetDefault("bedrock.top_p", 0.9)
	vip.SetDefault("bedrock.top_k", 250)
	vip.SetDefault("bedrock.base_prompt", "You are a helpful AI assistant. Please respond to: {prompt}")
	vip.SetDefault("ocr.max_image_size_mb", 10)
	vip.SetDefault("ocr.download_timeout", "30s")
	vip.SetDefault("speech.max_audio_size_mb", 25)
	vip.SetDefault("speech.download_timeout", "30s")
	vip.SetDefault("speech.key_prefix", "staging")
	vip.SetDefault("speech.language_code", "en-US")
	vip.SetDefault("speech.poll_interval", "2s")
	vip.SetDefault("speech.job_timeout", "5m")
	vip.SetDefault("audit.channel_buffer_size", 256)
	vip.SetDefault("audit.worker_count", 2)

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Missing credential material is the one initialization failure operators
	// hit most; report it distinctly from other validation failures.
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.SecretAccessKey == "" {
		return nil, fmt.Errorf("aws credentials are not configured: set aws.access_key_id and aws.secret_access_key (or AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY)")
	}

	validate := validator.New()
	if err := customvalidator.RegisterCustomValidators(validate); err != nil {
		return nil, fmt.Errorf("failed to register custom validators: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.ServiceVersion = getenv("TEXTPIPE_SERVICE_VERSION", "unknown")

	return &cfg, nil
}

// getenv returns an environment variable or a default value.
func getenv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
