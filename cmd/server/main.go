package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/veridian-ai/textpipe/internal/adapters/llm"
	"github.com/veridian-ai/textpipe/internal/adapters/ocr"
	"github.com/veridian-ai/textpipe/internal/adapters/speech"
	"github.com/veridian-ai/textpipe/internal/app/rest"
	"github.com/veridian-ai/textpipe/internal/config"
	app_errors "github.com/veridian-ai/textpipe/internal/errors"
	"github.com/veridian-ai/textpipe/internal/fetch"
	"github.com/veridian-ai/textpipe/internal/wiring"
	"github.com/veridian-ai/textpipe/pkg/patterns/lifecycle"
)

const bytesPerMB = 1 << 20

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := config.Load(os.Getenv("TEXTPIPE_CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := wiring.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build shared clients", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error("failed to close container", "error", err)
		}
	}()

	generator, err := llm.New(container.BedrockRuntime(), container.BedrockControl(), cfg.Bedrock, logger)
	if err != nil {
		logger.Error("failed to create text generator", "error", err)
		os.Exit(1)
	}

	imageFetcher := fetch.NewDownloader(cfg.OCR.DownloadTimeout, int64(cfg.OCR.MaxImageSizeMB)*bytesPerMB, logger)
	extractor := ocr.New(container.Textract(), imageFetcher, cfg.OCR, logger)

	audioFetcher := fetch.NewDownloader(cfg.Speech.DownloadTimeout, int64(cfg.Speech.MaxAudioSizeMB)*bytesPerMB, logger)
	transcriber, err := speech.New(container.Transcribe(), container.S3(), audioFetcher, cfg.Speech, logger)
	if err != nil {
		logger.Error("failed to create transcriber", "error", err)
		os.Exit(1)
	}

	recorder, auditResource, err := container.AuditRecorder(ctx)
	if err != nil {
		logger.Error("failed to create audit recorder", "error", err)
		os.Exit(1)
	}

	errorClassifier := app_errors.NewErrorClassifier(logger)
	srv := rest.New(cfg, rest.Services{
		Generator:   generator,
		Extractor:   extractor,
		Transcriber: transcriber,
	}, recorder, errorClassifier, logger)

	resources := []lifecycle.ManagedResource{}
	if auditResource != nil {
		resources = append(resources, auditResource)
	}
	resources = append(resources, srv)

	go func() {
		logger.Info("starting application resources")
		for _, r := range resources {
			if err := r.Start(ctx); err != nil {
				logger.Error("error starting resource", "error", err)
				cancel()
				return
			}
		}
		logger.Info("application started successfully", "port", cfg.Server.Port)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-signalChan:
		logger.Info("received shutdown signal", "signal", s.String())
	case <-ctx.Done():
		logger.Info("context cancelled, initiating shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down application resources")
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Stop(shutdownCtx); err != nil {
			logger.Error("error stopping resource", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
