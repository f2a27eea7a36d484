package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Backend names accepted in PREFS_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
)

type Config struct {
	ServerPort      string
	JWTSecret       string
	JWTIssuer       string
	CORSAllowOrigin string
	LogLevel        slog.Level
	DevBypassAuth   bool

	Backend         string
	AWSRegion       string
	DynamoEndpoint  string
	DynamoTableName string
	S3Bucket        string
	S3Endpoint      string
	S3Prefix        string
	RedisAddr       string
	BadgerDir       string
	PrefsDir        string

	DefaultTheme  string
	DefaultLocale string
	I18nDir       string
}

func LoadConfig() (Config, error) {
	secret := os.Getenv("JWT_SECRET")
	devBypass := strings.EqualFold(os.Getenv("DEV_BYPASS_AUTH"), "true")
	if secret == "" && !devBypass {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := Config{
		ServerPort:      envOrDefault("SERVER_PORT", "8080"),
		JWTSecret:       secret,
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		CORSAllowOrigin: envOrDefault("CORS_ALLOW_ORIGIN", "*"),
		LogLevel:        parseLogLevel(os.Getenv("LOG_LEVEL")),
		DevBypassAuth:   devBypass,

		Backend:         strings.ToLower(envOrDefault("PREFS_BACKEND", BackendMemory)),
		AWSRegion:       envOrDefault("AWS_REGION", "us-east-1"),
		DynamoEndpoint:  os.Getenv("DYNAMODB_ENDPOINT"),
		DynamoTableName: envOrDefault("DYNAMODB_TABLE_NAME", "user-preferences"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Prefix:        envOrDefault("S3_PREFIX", "preferences"),
		RedisAddr:       envOrDefault("REDIS_ADDR", "localhost:6379"),
		BadgerDir:       envOrDefault("BADGER_DIR", "data/badger"),
		PrefsDir:        envOrDefault("PREFS_DIR", "data/preferences"),

		DefaultTheme:  envOrDefault("DEFAULT_THEME", "light"),
		DefaultLocale: envOrDefault("DEFAULT_LOCALE", "en"),
		I18nDir:       os.Getenv("I18N_DIR"),
	}

	switch cfg.Backend {
	case BackendMemory, BackendFile, BackendBadger, BackendRedis, BackendDynamoDB:
	case BackendS3:
		if cfg.S3Bucket == "" {
			return Config{}, fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown PREFS_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
