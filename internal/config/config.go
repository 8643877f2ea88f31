// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// memoryPublicBase prefixes blob URLs when the memory driver runs without AWS_LINK.
const memoryPublicBase = "memory://"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	BcryptCost     int    `mapstructure:"BCRYPT_COST"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	// Blob storage
	BlobDriver    string        `mapstructure:"BLOB_DRIVER"`
	BucketName    string        `mapstructure:"BUCKET_NAME"`
	Region        string        `mapstructure:"REGION"`
	AccessKey     string        `mapstructure:"ACCESS_KEY"`
	SecretKey     string        `mapstructure:"SECRET_KEY"`
	BlobEndpoint  string        `mapstructure:"BLOB_ENDPOINT"`
	BlobUseSSL    bool          `mapstructure:"BLOB_USE_SSL"`
	PublicBaseURL string        `mapstructure:"AWS_LINK"`
	BlobOpTimeout time.Duration `mapstructure:"BLOB_OP_TIMEOUT"`

	// Tracing
	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LoadConfig loads application configuration from .env, config files and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file may not exist.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("Loaded profile-specific configuration", slog.String("file", "config."+env+".yml"))
	}

	viper.SetDefault("PORT", "5000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("BCRYPT_COST", 10)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "inkwell")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	viper.SetDefault("BLOB_DRIVER", "s3")
	viper.SetDefault("BUCKET_NAME", "")
	viper.SetDefault("REGION", "us-east-1")
	viper.SetDefault("ACCESS_KEY", "")
	viper.SetDefault("SECRET_KEY", "")
	viper.SetDefault("BLOB_ENDPOINT", "")
	viper.SetDefault("BLOB_USE_SSL", true)
	viper.SetDefault("AWS_LINK", "")
	viper.SetDefault("BLOB_OP_TIMEOUT", "5s")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.BlobDriver = strings.ToLower(strings.TrimSpace(config.BlobDriver))
	if config.BlobDriver == "memory" && config.PublicBaseURL == "" {
		config.PublicBaseURL = memoryPublicBase
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.BlobOpTimeout <= 0 {
		return errors.New("BLOB_OP_TIMEOUT must be positive")
	}

	// Stored URLs are resolved back to keys by stripping this prefix; without
	// it no blob could ever be deleted.
	if c.PublicBaseURL == "" {
		return errors.New("AWS_LINK is required")
	}

	switch c.BlobDriver {
	case "s3", "minio":
		if c.BucketName == "" {
			return errors.New("BUCKET_NAME is required for the " + c.BlobDriver + " blob driver")
		}
		if c.BlobDriver == "minio" && c.BlobEndpoint == "" {
			return errors.New("BLOB_ENDPOINT is required for the minio blob driver")
		}
	case "memory":
		if c.IsProduction() {
			return errors.New("the memory blob driver cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.BlobDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
