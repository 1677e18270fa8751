package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage backends for sensor snapshots.
const (
	BackendNone  = "none"
	BackendTSV   = "tsv"
	BackendR2    = "r2"
	BackendRedis = "redis"
)

// StorageConfig selects where the collector writes readings.
type StorageConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=none tsv r2 redis"`
	DataDir string      `yaml:"data_dir" validate:"required_if=Backend tsv"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the connection details of the latest-value store.
type RedisConfig struct {
	Address  string `yaml:"address" validate:"required"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

func (s *StorageConfig) applyEnv() error {
	if v := os.Getenv("EMT_STORAGE"); v != "" {
		s.Backend = v
	}
	if v := os.Getenv("EMT_DATA_DIR"); v != "" {
		s.DataDir = v
	}
	if v := os.Getenv("EMT_REDIS_ADDRESS"); v != "" {
		s.Redis.Address = v
	}
	if v := os.Getenv("EMT_REDIS_PASSWORD"); v != "" {
		s.Redis.Password = v
	}
	if v := os.Getenv("EMT_REDIS_DATABASE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid EMT_REDIS_DATABASE: %w", err)
		}
		s.Redis.Database = n
	}
	return nil
}

func (s *StorageConfig) applyDefaults() {
	if s.Backend == "" {
		s.Backend = BackendTSV
	}
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.Redis.Address == "" {
		s.Redis.Address = "localhost:6379"
	}
	if s.Redis.Prefix == "" {
		s.Redis.Prefix = "emt:"
	}
}

// R2Config holds Cloudflare R2 configuration.
type R2Config struct {
	AccessKeyID     string `validate:"required"`
	SecretAccessKey string `validate:"required"`
	Endpoint        string `validate:"required,url"`
	BucketName      string `validate:"required"`
	Prefix          string
	Region          string
}

// LoadR2Config loads R2 configuration from environment variables or .env file.
// Credentials are only read from the environment, never from the YAML file.
func LoadR2Config() (*R2Config, error) {
	_ = godotenv.Load()

	cfg := &R2Config{
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		BucketName:      os.Getenv("S3_BUCKET_NAME"),
		Prefix:          os.Getenv("S3_PREFIX"),
		Region:          os.Getenv("S3_REGION"),
	}

	if cfg.Prefix == "" {
		cfg.Prefix = "readings/"
	}
	// R2 ignores the region but the AWS SDK requires one
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("missing or invalid S3_* environment variables: %w", err)
	}
	return cfg, nil
}
