// Package bootstrap provides dependency initialization for the LogoMotion API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/logomotion/logomotion-api/internal/config"
	"github.com/logomotion/logomotion-api/internal/credential"
	"github.com/logomotion/logomotion-api/internal/gemini"
	"github.com/logomotion/logomotion-api/internal/generation"
	"github.com/logomotion/logomotion-api/internal/session"
	"github.com/logomotion/logomotion-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Session     *session.Session
	Credentials *credential.Store
	Storage     storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Credential state starts selected only when a key is configured;
	// otherwise the session prompts the selector on the first animation.
	creds := credential.NewStore(cfg.GeminiAPIKey)
	selector := credential.NewEnvSelector("GEMINI_API_KEY")

	// A fresh client is built per gateway call so a credential selected
	// or replaced between calls takes effect without a restart.
	newClient := func() (gemini.Client, error) {
		return gemini.NewClient(creds.Key(), gemini.WithBaseURL(cfg.GeminiBaseURL))
	}

	gateway := generation.NewGateway(newClient, store, logger,
		generation.WithModels(cfg.ImageModel, cfg.VideoModel),
		generation.WithPollInterval(cfg.PollInterval),
		generation.WithPollTimeout(cfg.PollTimeout),
		generation.WithS3Upload(cfg.S3Enabled()),
	)

	sess := session.New(gateway, creds, selector, store, logger,
		session.WithStatusRotateInterval(cfg.StatusRotateInterval),
	)

	return &Dependencies{
		Session:     sess,
		Credentials: creds,
		Storage:     store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("dir", cfg.TempDir),
	)
	return localStore, nil
}
