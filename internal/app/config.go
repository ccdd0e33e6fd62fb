package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/gmr-archive-backend/internal/data/db"
	"github.com/yungbote/gmr-archive-backend/internal/http/middleware"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/envutil"
	"github.com/yungbote/gmr-archive-backend/internal/pkg/logger"
	"github.com/yungbote/gmr-archive-backend/internal/services"
)

type Config struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration

	DB db.Config

	JWTSecretKey string
	JWTIssuer    string

	UploadMaxBytes             int64
	MediaBucket                string
	MediaCDNDomain             string
	ObjectStoragePublicBaseURL string
	ObjectStorageMode          string
	StorageEmulatorHost        string

	CORSAllowedOrigins []string

	OtelEnabled     bool
	OtelEndpoint    string
	OtelSampleRatio float64
	MetricsEnabled  bool
}

// fileConfig is the optional YAML base layer named by ARCHIVE_CONFIG_FILE.
// Environment variables win over anything set here.
type fileConfig struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	Database    struct {
		Driver     string `yaml:"driver"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		Name       string `yaml:"name"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecretKey string `yaml:"jwt_secret_key"`
		Issuer       string `yaml:"issuer"`
	} `yaml:"auth"`
	Media struct {
		Bucket         string `yaml:"bucket"`
		CDNDomain      string `yaml:"cdn_domain"`
		PublicBaseURL  string `yaml:"public_base_url"`
		StorageMode    string `yaml:"storage_mode"`
		EmulatorHost   string `yaml:"emulator_host"`
		UploadMaxBytes int64  `yaml:"upload_max_bytes"`
	} `yaml:"media"`
	HTTP struct {
		CORSAllowedOrigins     []string `yaml:"cors_allowed_origins"`
		ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	} `yaml:"http"`
	Telemetry struct {
		OtelEnabled     *bool   `yaml:"otel_enabled"`
		OtelEndpoint    string  `yaml:"otel_endpoint"`
		OtelSampleRatio float64 `yaml:"otel_sampler_ratio"`
		MetricsEnabled  *bool   `yaml:"metrics_enabled"`
	} `yaml:"telemetry"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("ARCHIVE_CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	shutdownSeconds := fc.HTTP.ShutdownTimeoutSeconds
	if shutdownSeconds <= 0 {
		shutdownSeconds = 15
	}
	origins := fc.HTTP.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = middleware.DefaultAllowedOrigins
	}
	ratio := fc.Telemetry.OtelSampleRatio
	if ratio == 0 {
		ratio = 1
	}

	cfg := Config{
		Port:            envutil.String("PORT", orDefault(fc.Port, "8080"), log),
		Environment:     envutil.String("APP_ENV", orDefault(fc.Environment, "development"), log),
		ShutdownTimeout: time.Duration(envutil.Int("SHUTDOWN_TIMEOUT_SECONDS", shutdownSeconds, log)) * time.Second,
		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", orDefault(fc.Database.Driver, db.DriverPostgres), log),
			PostgresHost:     envutil.String("POSTGRES_HOST", orDefault(fc.Database.Host, "localhost"), log),
			PostgresPort:     envutil.String("POSTGRES_PORT", orDefault(fc.Database.Port, "5432"), log),
			PostgresUser:     envutil.String("POSTGRES_USER", orDefault(fc.Database.User, "postgres"), log),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", fc.Database.Password, log),
			PostgresName:     envutil.String("POSTGRES_NAME", orDefault(fc.Database.Name, "gmr_archive"), log),
			SQLitePath:       envutil.String("SQLITE_PATH", fc.Database.SQLitePath, log),
		},
		JWTSecretKey:               envutil.String("JWT_SECRET_KEY", fc.Auth.JWTSecretKey, log),
		JWTIssuer:                  envutil.String("JWT_ISSUER", fc.Auth.Issuer, log),
		UploadMaxBytes:             envutil.Int64("UPLOAD_MAX_BYTES", orInt64(fc.Media.UploadMaxBytes, services.DefaultUploadMaxBytes), log),
		MediaBucket:                envutil.String("MEDIA_GCS_BUCKET_NAME", fc.Media.Bucket, log),
		MediaCDNDomain:             envutil.String("MEDIA_CDN_DOMAIN", fc.Media.CDNDomain, log),
		ObjectStoragePublicBaseURL: envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", fc.Media.PublicBaseURL, log),
		ObjectStorageMode:          envutil.String("OBJECT_STORAGE_MODE", fc.Media.StorageMode, log),
		StorageEmulatorHost:        envutil.String("STORAGE_EMULATOR_HOST", fc.Media.EmulatorHost, log),
		CORSAllowedOrigins:         envutil.List("CORS_ALLOWED_ORIGINS", origins, log),
		OtelEnabled:                envutil.Bool("OTEL_ENABLED", orBool(fc.Telemetry.OtelEnabled, false), log),
		OtelEndpoint:               envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", fc.Telemetry.OtelEndpoint, log),
		OtelSampleRatio:            envutil.Float("OTEL_SAMPLER_RATIO", ratio, log),
		MetricsEnabled:             envutil.Bool("METRICS_ENABLED", orBool(fc.Telemetry.MetricsEnabled, true), log),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("missing JWT_SECRET_KEY")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orInt64(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

func orBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
