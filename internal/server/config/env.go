package config

import "github.com/ilyakaznacheev/cleanenv"

// EnvConfig lists the environment variables the server honours.
type EnvConfig struct {
	HTTPAddr       string `env:"HTTP_ADDR"`
	DatabaseDSN    string `env:"DATABASE_URL"`
	SecretKey      string `env:"SECRET_KEY"`
	LogLevel       string `env:"LOG_LEVEL"`
	SecureCookies  bool   `env:"SECURE_COOKIES"`
	S3RootUser     string `env:"S3_ROOT_USER"`
	S3RootPassword string `env:"S3_ROOT_PASSWORD"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`
}

// parseEnv overlays set environment variables onto config.
func parseEnv(config *Config) {
	var e EnvConfig
	if err := cleanenv.ReadEnv(&e); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, e.HTTPAddr)
	setString(&config.DatabaseDSN, e.DatabaseDSN)
	setString(&config.SecretKey, e.SecretKey)
	setString(&config.LogLevel, e.LogLevel)
	setString(&config.S3RootUser, e.S3RootUser)
	setString(&config.S3RootPassword, e.S3RootPassword)
	setString(&config.S3Bucket, e.S3Bucket)
	setString(&config.S3Region, e.S3Region)
	setString(&config.S3BaseEndpoint, e.S3BaseEndpoint)

	// an unset variable reads as false, so only true is applied
	if e.SecureCookies {
		config.SecureCookies = true
	}
}
