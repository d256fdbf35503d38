// Package config содержит логику чтения конфигурации сервиса Zona Botín.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса Zona Botín.
// Секреты (MP_ACCESS_TOKEN и прочие) задаются только через окружение;
// их отсутствие не валит процесс, а приводит к ошибке конкретной операции.
type Config struct {
	RunAddress             string `env:"RUN_ADDRESS"`
	DatabaseURI            string `env:"DATABASE_URI"`
	RedisAddress           string `env:"REDIS_ADDRESS"`
	BaseURL                string `env:"BASE_URL"`
	AdminEmail             string `env:"ADMIN_EMAIL"`
	MPAccessToken          string `env:"MP_ACCESS_TOKEN"`
	CloudinaryCloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryUploadPreset string `env:"CLOUDINARY_UPLOAD_PRESET"`
	AuthSecret             string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Значения окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress
	envBaseURL := cfg.BaseURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "localhost:6379", "redis address for cart sessions")
	flag.StringVar(&cfg.BaseURL, "b", "http://localhost:8080", "public base URL for payment callbacks")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envBaseURL != "" {
		cfg.BaseURL = envBaseURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
