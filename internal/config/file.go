package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/keydozer/internal/flagx"
	"github.com/dmitrijs2005/keydozer/internal/timex"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. It is pre-filled from the current Config,
// so keys absent from the file keep their earlier values.
type fileConfig struct {
	LocalDBPath        string         `json:"local_db_path" yaml:"local_db_path"`
	RemoteBackend      string         `json:"remote_backend" yaml:"remote_backend"`
	PostgresDSN        string         `json:"postgres_dsn" yaml:"postgres_dsn"`
	MongoURI           string         `json:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase      string         `json:"mongo_database" yaml:"mongo_database"`
	S3Bucket           string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region           string         `json:"s3_region" yaml:"s3_region"`
	S3Endpoint         string         `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey        string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	KDFTime            uint32         `json:"kdf_time" yaml:"kdf_time"`
	KDFMemoryKiB       uint32         `json:"kdf_memory_kib" yaml:"kdf_memory_kib"`
	KDFThreads         uint8          `json:"kdf_threads" yaml:"kdf_threads"`
	SessionIdleTimeout timex.Duration `json:"session_idle_timeout" yaml:"session_idle_timeout"`
	NotifyWebhook      string         `json:"notify_webhook" yaml:"notify_webhook"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
	LogFormat          string         `json:"log_format" yaml:"log_format"`
}

func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fc := fileConfig{
		LocalDBPath:        cfg.LocalDBPath,
		RemoteBackend:      cfg.RemoteBackend,
		PostgresDSN:        cfg.PostgresDSN,
		MongoURI:           cfg.MongoURI,
		MongoDatabase:      cfg.MongoDatabase,
		S3Bucket:           cfg.S3Bucket,
		S3Region:           cfg.S3Region,
		S3Endpoint:         cfg.S3Endpoint,
		S3AccessKey:        cfg.S3AccessKey,
		S3SecretKey:        cfg.S3SecretKey,
		KDFTime:            cfg.KDFTime,
		KDFMemoryKiB:       cfg.KDFMemoryKiB,
		KDFThreads:         cfg.KDFThreads,
		SessionIdleTimeout: timex.Duration{Duration: cfg.SessionIdleTimeout},
		NotifyWebhook:      cfg.NotifyWebhook,
		LogLevel:           cfg.LogLevel,
		LogFormat:          cfg.LogFormat,
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	cfg.LocalDBPath = fc.LocalDBPath
	cfg.RemoteBackend = fc.RemoteBackend
	cfg.PostgresDSN = fc.PostgresDSN
	cfg.MongoURI = fc.MongoURI
	cfg.MongoDatabase = fc.MongoDatabase
	cfg.S3Bucket = fc.S3Bucket
	cfg.S3Region = fc.S3Region
	cfg.S3Endpoint = fc.S3Endpoint
	cfg.S3AccessKey = fc.S3AccessKey
	cfg.S3SecretKey = fc.S3SecretKey
	cfg.KDFTime = fc.KDFTime
	cfg.KDFMemoryKiB = fc.KDFMemoryKiB
	cfg.KDFThreads = fc.KDFThreads
	cfg.SessionIdleTimeout = fc.SessionIdleTimeout.Duration
	cfg.NotifyWebhook = fc.NotifyWebhook
	cfg.LogLevel = fc.LogLevel
	cfg.LogFormat = fc.LogFormat
	return nil
}
