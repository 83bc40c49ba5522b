// Package config loads runtime configuration for the keydozer CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or --config. The format follows
//     the extension: .json and .jsonc (comments and trailing commas allowed)
//     or .yaml and .yml.
//  3. Command-line flags, which override earlier values.
//
// Durations in files may be strings like "15m" or integer nanoseconds:
//
//	{
//	  // local vault
//	  "local_db_path": "keydozer.db",
//	  "remote_backend": "postgres",
//	  "postgres_dsn": "postgres://keydozer@localhost/keydozer",
//	  "session_idle_timeout": "15m",
//	}
package config
