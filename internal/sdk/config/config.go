// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Server holds HTTP server settings.
type Server struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Database holds Postgres connection settings.
type Database struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Username string `env:"DB_USERNAME,required"`
	Password string `env:"DB_PASSWORD,required"`
	Database string `env:"DB_DATABASE,required"`
	Schema   string `env:"DB_SCHEMA" envDefault:"accounts"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// URL builds the connection string for the pgx stdlib driver.
func (d Database) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode, d.Schema)
}

// Tokens holds the three signing secrets and their lifetimes. The secrets are
// independent so that a leaked reset secret cannot forge access or refresh
// tokens.
type Tokens struct {
	Issuer        string        `env:"JWT_ISSUER" envDefault:"videotube"`
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	ResetSecret   string        `env:"RESET_TOKEN_SECRET,required"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	ResetTTL      time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
}

// Media holds settings for the S3-compatible media store.
type Media struct {
	Endpoint        string `env:"MEDIA_S3_ENDPOINT,required"`
	AccessKeyID     string `env:"MEDIA_S3_ACCESS_KEY_ID,required"`
	SecretAccessKey string `env:"MEDIA_S3_SECRET_ACCESS_KEY,required"`
	Bucket          string `env:"MEDIA_S3_BUCKET,required"`
	Region          string `env:"MEDIA_S3_REGION" envDefault:"us-east-1"`
	UseSSL          bool   `env:"MEDIA_S3_USE_SSL"`
	PublicBaseURL   string `env:"MEDIA_PUBLIC_BASE_URL,required"`
}

type Config struct {
	Server   Server
	Database Database
	Tokens   Tokens
	Media    Media
}

// Load reads a .env file when present and parses the environment into Config.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	return &cfg, nil
}
