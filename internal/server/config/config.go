// Package config handles configuration for the lending server: defaults,
// an optional JSON file, environment variables and command-line flags,
// applied in that order.
package config

import "time"

// Config holds runtime settings for the server.
//
// Fields:
//   - HTTPAddr: bind address of the HTTP endpoint.
//   - DatabaseDSN: postgres:// URL (pgx) or a SQLite DSN (file:..., :memory:).
//   - SecretKey: HMAC secret for signing session tokens (HS256).
//   - SessionValidity: lifetime of a login session.
//   - TxTimeout: upper bound for one store transaction, retries included.
//   - TxMaxAttempts: attempts for a transaction hitting a serialization conflict.
//   - LogLevel: debug, info, warn or error.
//   - SecureCookies: mark session cookies Secure; enable behind TLS.
//   - S3*: object storage for book covers. Covers are disabled when S3Bucket is empty.
type Config struct {
	HTTPAddr        string
	DatabaseDSN     string
	SecretKey       string
	SessionValidity time.Duration
	TxTimeout       time.Duration
	TxMaxAttempts   int
	LogLevel        string
	SecureCookies   bool
	S3RootUser      string
	S3RootPassword  string
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key must be overridden outside of development.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DatabaseDSN = "file:library.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	c.SecretKey = "dev-secret"
	c.SessionValidity = 24 * time.Hour
	c.TxTimeout = 5 * time.Second
	c.TxMaxAttempts = 2
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// CoversEnabled reports whether object storage for covers is configured.
func (c *Config) CoversEnabled() bool {
	return c.S3Bucket != ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
