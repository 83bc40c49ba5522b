package config

import (
	"github.com/dmitrijs2005/keydozer/internal/flagx"
	"github.com/spf13/pflag"
)

var flagNames = []string{
	"--local-db", "--remote", "--postgres-dsn", "--mongo-uri", "--mongo-db",
	"--s3-bucket", "--s3-region", "--s3-endpoint", "--s3-access-key", "--s3-secret-key",
	"--kdf-time", "--kdf-memory", "--kdf-threads", "--idle-timeout", "--notify-webhook",
	"--log-level", "--log-format",
}

// parseFlags overlays cfg with command-line flags. Arguments that belong to
// other parsers are filtered out first.
func parseFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("keydozer", pflag.ContinueOnError)

	fs.StringVar(&cfg.LocalDBPath, "local-db", cfg.LocalDBPath, "path to the local vault database")
	fs.StringVar(&cfg.RemoteBackend, "remote", cfg.RemoteBackend, "remote store: memory, postgres, mongo or s3")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "postgres connection string")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "mongodb connection uri")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", cfg.MongoDatabase, "mongodb database name")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "s3 bucket")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "s3 region")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "custom s3 endpoint")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "s3 access key id")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "s3 secret access key")
	fs.Uint32Var(&cfg.KDFTime, "kdf-time", cfg.KDFTime, "argon2id iterations")
	fs.Uint32Var(&cfg.KDFMemoryKiB, "kdf-memory", cfg.KDFMemoryKiB, "argon2id memory in KiB")
	fs.Uint8Var(&cfg.KDFThreads, "kdf-threads", cfg.KDFThreads, "argon2id parallelism")
	fs.DurationVar(&cfg.SessionIdleTimeout, "idle-timeout", cfg.SessionIdleTimeout, "lock the vault after this much inactivity")
	fs.StringVar(&cfg.NotifyWebhook, "notify-webhook", cfg.NotifyWebhook, "post notifications to this url")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")

	return fs.Parse(flagx.FilterArgs(args, flagNames))
}
