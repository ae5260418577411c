// Package config reads service configuration from the environment.
package config

import (
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// TokenTTLHours is how long issued session tokens stay valid.
	TokenTTLHours int

	// StoragePath is the blob store root; uploads are sharded under it.
	StoragePath         string
	ErasureDataShards   int
	ErasureParityShards int

	// MaxUploadSize caps an upload request body in bytes.
	MaxUploadSize int64

	// UploadRate limits imports per second per client, with UploadBurst
	// as the burst allowance.
	UploadRate  float64
	UploadBurst int

	CacheTTLSeconds int

	// SMTP settings for package notification mail.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
}

func Load() (*Config, error) {
	LoadEnvOnce()

	maxUpload, _ := strconv.ParseInt(GetEnvWithFallback("MAX_UPLOAD_SIZE", "67108864"), 10, 64) // 64 MiB
	dataShards, _ := strconv.Atoi(GetEnvWithFallback("ERASURE_DATA_SHARDS", "4"))
	parityShards, _ := strconv.Atoi(GetEnvWithFallback("ERASURE_PARITY_SHARDS", "2"))
	cacheTTL, _ := strconv.Atoi(GetEnvWithFallback("CACHE_TTL", "300"))
	uploadRate, _ := strconv.ParseFloat(GetEnvWithFallback("UPLOAD_RATE", "1"), 64)
	uploadBurst, _ := strconv.Atoi(GetEnvWithFallback("UPLOAD_BURST", "5"))
	smtpPort, _ := strconv.Atoi(GetEnvWithFallback("SMTP_PORT", "587"))
	tokenTTL, _ := strconv.Atoi(GetEnvWithFallback("TOKEN_TTL_HOURS", "720"))

	return &Config{
		Port:        GetEnvWithFallback("PORT", "8080"),
		Environment: GetEnvWithFallback("ENVIRONMENT", "development"),
		LogLevel:    GetEnvWithFallback("LOG_LEVEL", "info"),

		DatabaseURL: GetEnvWithFallback("DATABASE_URL", "postgresql://localhost:5432/archaur?sslmode=disable"),
		RedisURL:    GetEnvWithFallback("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:   GetEnvWithFallback("JWT_SECRET", "change-me"),

		TokenTTLHours: tokenTTL,

		StoragePath:         GetEnvWithFallback("STORAGE_PATH", "./data"),
		ErasureDataShards:   dataShards,
		ErasureParityShards: parityShards,

		MaxUploadSize: maxUpload,
		UploadRate:    uploadRate,
		UploadBurst:   uploadBurst,

		CacheTTLSeconds: cacheTTL,

		SMTPHost:     GetEnvWithFallback("SMTP_HOST", ""),
		SMTPPort:     smtpPort,
		SMTPUser:     GetEnvWithFallback("SMTP_USER", ""),
		SMTPPassword: GetEnvWithFallback("SMTP_PASSWORD", ""),
		MailFrom:     GetEnvWithFallback("MAIL_FROM", "notify@archaur.local"),
	}, nil
}
