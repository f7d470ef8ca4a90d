package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/booklend/internal/flagx"
	"github.com/dmitrijs2005/booklend/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "24h"-style strings and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	DatabaseDSN     string         `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	SessionValidity timex.Duration `json:"session_validity"`
	TxTimeout       timex.Duration `json:"tx_timeout"`
	TxMaxAttempts   int            `json:"tx_max_attempts"`
	LogLevel        string         `json:"log_level"`
	SecureCookies   *bool          `json:"secure_cookies"`
	S3RootUser      string         `json:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config into config. Keys missing
// from the file keep their current values. An unreadable file or invalid
// JSON panics: the process cannot start with a config it was told to use.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.SessionValidity.Duration > 0 {
		config.SessionValidity = c.SessionValidity.Duration
	}
	if c.TxTimeout.Duration > 0 {
		config.TxTimeout = c.TxTimeout.Duration
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	if c.TxMaxAttempts > 0 {
		config.TxMaxAttempts = c.TxMaxAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
