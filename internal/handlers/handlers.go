package handlers

import (
	"context"
	"time"

	"swing-lab/internal/database"
	"swing-lab/internal/processor"
	"swing-lab/internal/startup"
	"swing-lab/internal/streaming"
)

// ObjectStore is the object storage surface the handlers need.
type ObjectStore interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// Pipeline is the processing surface the handlers need.
type Pipeline interface {
	Enqueue(swingID string)
	GetHealthStatus() processor.HealthStatus
	IsReady() bool
}

type Handlers struct {
	db             *database.Database
	store          ObjectStore
	pipeline       Pipeline
	uploadDir      string
	maxUploadBytes int64
	signedTTL      time.Duration
	streamConfig   streaming.TimeoutWriterConfig
}

func New(db *database.Database, store ObjectStore, pipeline Pipeline, config *startup.Config) *Handlers {
	streamConfig := streaming.DefaultTimeoutWriterConfig()
	streamConfig.WriteTimeout = 30 * time.Second
	streamConfig.IdleTimeout = 60 * time.Second
	streamConfig.ChunkSize = 256 * 1024 // 256KB chunks for video

	return &Handlers{
		db:             db,
		store:          store,
		pipeline:       pipeline,
		uploadDir:      config.UploadDir,
		maxUploadBytes: config.MaxUploadBytes,
		signedTTL:      config.SignedURLTTL,
		streamConfig:   streamConfig,
	}
}
