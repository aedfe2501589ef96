package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veridian-ai/textpipe/internal/audit"
	"github.com/veridian-ai/textpipe/internal/config"
	"github.com/veridian-ai/textpipe/internal/domain"
	"github.com/veridian-ai/textpipe/internal/infra/persistence"
)

// Container constructs the long-lived client handles shared by all requests.
// The AWS configuration is built once; the underlying transports are safe for
// concurrent use.
type Container struct {
	cfg    *config.Config
	logger *slog.Logger
	awsCfg aws.Config

	poolOnce sync.Once
	pool     *pgxpool.Pool
	poolErr  error
}

// NewContainer builds the shared AWS configuration. A credential or transport
// construction failure here is fatal to the process.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	awsCfg, err := BuildAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return &Container{cfg: cfg, logger: logger, awsCfg: awsCfg}, nil
}

func (c *Container) BedrockRuntime() *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(c.awsCfg)
}

func (c *Container) BedrockControl() *bedrock.Client {
	return bedrock.NewFromConfig(c.awsCfg)
}

func (c *Container) Textract() *textract.Client {
	return textract.NewFromConfig(c.awsCfg)
}

func (c *Container) Transcribe() *transcribe.Client {
	return transcribe.NewFromConfig(c.awsCfg)
}

func (c *Container) S3() *s3.Client {
	return s3.NewFromConfig(c.awsCfg)
}

// AuditRecorder provides the request-audit recorder. When auditing is
// disabled it returns a no-op recorder and no managed resource.
func (c *Container) AuditRecorder(ctx context.Context) (domain.AuditRecorder, *audit.AsyncRecorder, error) {
	if !c.cfg.Audit.Enabled {
		return audit.NoopRecorder{}, nil, nil
	}

	pool, err := c.auditPool(ctx)
	if err != nil {
		return nil, nil, err
	}

	repo, err := persistence.NewAuditRepository(ctx, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audit repository: %w", err)
	}

	recorder := audit.NewAsyncRecorder(c.logger, repo, audit.Config{
		ChannelBufferSize: c.cfg.Audit.ChannelBufferSize,
		WorkerCount:       c.cfg.Audit.WorkerCount,
	})
	return recorder, recorder, nil
}

func (c *Container) auditPool(ctx context.Context) (*pgxpool.Pool, error) {
	c.poolOnce.Do(func() {
		c.pool, c.poolErr = pgxpool.New(ctx, c.cfg.Audit.DatabaseURL)
	})
	if c.poolErr != nil {
		return nil, fmt.Errorf("failed to create audit pool: %w", c.poolErr)
	}
	return c.pool, nil
}

// Close releases pooled resources.
func (c *Container) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}
