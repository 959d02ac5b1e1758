package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	backendPostgres = "postgres"
	backendHTTP     = "http"
)

type config struct {
	addr           string
	hostOrigin     string
	contentURL     string
	backend        string
	telegramToken  string
	redisAddr      string
	moduleCacheTTL time.Duration

	postgresDSN  string
	postgresIdle int
	postgresOpen int

	equalBaseURL      string
	equalClientID     string
	equalClientSecret string
	equalTokenURL     string
	equalScopes       []string
}

func loadConfig() (config, error) {
	cfg := config{
		addr:          getenv("PLAYER_ADDR", ":8080"),
		hostOrigin:    os.Getenv("HOST_ORIGIN"),
		contentURL:    os.Getenv("CONTENT_SURFACE_URL"),
		backend:       getenv("GATEWAY_BACKEND", backendPostgres),
		telegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		redisAddr:     os.Getenv("REDIS_ADDR"),

		equalBaseURL:      os.Getenv("EQUAL_BASE_URL"),
		equalClientID:     os.Getenv("EQUAL_CLIENT_ID"),
		equalClientSecret: os.Getenv("EQUAL_CLIENT_SECRET"),
		equalTokenURL:     os.Getenv("EQUAL_TOKEN_URL"),
	}

	if cfg.hostOrigin == "" {
		return config{}, fmt.Errorf("HOST_ORIGIN is required")
	}
	if cfg.contentURL == "" {
		cfg.contentURL = strings.TrimRight(cfg.hostOrigin, "/") + "/content"
	}

	ttl, err := time.ParseDuration(getenv("MODULE_CACHE_TTL", "10m"))
	if err != nil {
		return config{}, fmt.Errorf("parse MODULE_CACHE_TTL: %w", err)
	}
	cfg.moduleCacheTTL = ttl

	if scopes := os.Getenv("EQUAL_SCOPES"); scopes != "" {
		cfg.equalScopes = strings.Split(scopes, ",")
	}

	switch cfg.backend {
	case backendPostgres:
		host := os.Getenv("POSTGRES_HOST")
		if host == "" {
			return config{}, fmt.Errorf("POSTGRES_HOST is required for the %s backend", backendPostgres)
		}
		cfg.postgresDSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, getenv("POSTGRES_PORT", "5432"), os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"), os.Getenv("POSTGRES_DB"))

		if cfg.postgresIdle, err = atoi("POSTGRES_MAX_IDLE", 10); err != nil {
			return config{}, err
		}
		if cfg.postgresOpen, err = atoi("POSTGRES_MAX_OPEN", 20); err != nil {
			return config{}, err
		}
	case backendHTTP:
		if cfg.equalBaseURL == "" {
			return config{}, fmt.Errorf("EQUAL_BASE_URL is required for the %s backend", backendHTTP)
		}
	default:
		return config{}, fmt.Errorf("unknown GATEWAY_BACKEND (value: %s)", cfg.backend)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func atoi(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s (value: %s): %w", key, v, err)
	}
	return n, nil
}
