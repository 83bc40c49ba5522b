package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/cryptox"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendS3       = "s3"
)

// Config holds runtime settings for the keydozer CLI.
type Config struct {
	LocalDBPath   string
	RemoteBackend string

	PostgresDSN string

	MongoURI      string
	MongoDatabase string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	KDFTime      uint32
	KDFMemoryKiB uint32
	KDFThreads   uint8

	SessionIdleTimeout time.Duration

	NotifyWebhook string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.LocalDBPath = "keydozer.db"
	c.RemoteBackend = BackendMemory
	c.MongoDatabase = "keydozer"
	c.S3Region = "us-east-1"
	c.KDFTime = cryptox.DefaultKDFParams.Time
	c.KDFMemoryKiB = cryptox.DefaultKDFParams.MemoryKiB
	c.KDFThreads = cryptox.DefaultKDFParams.Threads
	c.SessionIdleTimeout = 15 * time.Minute
	c.LogLevel = "info"
	c.LogFormat = "text"
}

func (c *Config) KDF() cryptox.KDFParams {
	return cryptox.KDFParams{Time: c.KDFTime, MemoryKiB: c.KDFMemoryKiB, Threads: c.KDFThreads}
}

// Validate checks that the selected remote backend has what it needs.
func (c *Config) Validate() error {
	if c.LocalDBPath == "" {
		return fmt.Errorf("%w: local db path is empty", common.ErrInvalidInput)
	}
	switch c.RemoteBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres backend needs a dsn", common.ErrInvalidInput)
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("%w: mongo backend needs uri and database", common.ErrInvalidInput)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3 backend needs a bucket", common.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown remote backend %q", common.ErrInvalidInput, c.RemoteBackend)
	}
	if c.NotifyWebhook != "" {
		if u, err := url.Parse(c.NotifyWebhook); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: notify webhook must be an http(s) url", common.ErrInvalidInput)
		}
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("%w: session idle timeout must be positive", common.ErrInvalidInput)
	}
	return c.KDF().Validate()
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if any) and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
