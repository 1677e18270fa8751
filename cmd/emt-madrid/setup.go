package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"emt-madrid/internal/collector"
	"emt-madrid/internal/config"
	"emt-madrid/internal/emt"
	"emt-madrid/internal/sensor"
	"emt-madrid/internal/storage"
)

// newCollector loads the configuration, registers every sensor and opens the storage backend.
func newCollector(c *cli.Context) (*collector.Collector, storage.Store, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(c.Context, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	client := emt.NewClientWithBaseURL(cfg.BaseURL)
	sensors := sensor.Setup(c.Context, client, cfg)
	if len(sensors) == 0 {
		return nil, nil, errors.New("no sensors could be set up")
	}
	log.Info().Int("sensors", len(sensors)).Str("storage", cfg.Storage.Backend).Msg("Sensors registered")

	interval := cfg.Interval
	if c.Bool("once") {
		interval = 0
	}
	return collector.New(sensors, store, interval), store, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendR2:
		r2, err := config.LoadR2Config()
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("endpoint", r2.Endpoint).
			Str("bucket", r2.BucketName).
			Str("region", r2.Region).
			Str("prefix", r2.Prefix).
			Msg("Using Cloudflare R2 for data storage")

		store := storage.NewR2Storage(r2)
		if _, err := store.BucketExists(ctx); err != nil {
			return nil, fmt.Errorf("bucket verification failed: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		log.Info().Str("address", cfg.Redis.Address).Msg("Using Redis for data storage")
		return storage.ConnectRedis(ctx, cfg.Redis)
	case config.BackendNone:
		log.Info().Msg("Readings are not stored")
		return storage.Discard{}, nil
	default:
		log.Info().Str("dir", cfg.DataDir).Msg("Using local file storage")
		return storage.NewTSVStorage(cfg.DataDir), nil
	}
}
