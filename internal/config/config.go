// Package config reads the environment into typed config structs. The Env
// indirection keeps the parsing testable without touching the process
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// ServerConfig drives the dev server.
type ServerConfig struct {
	Port               int
	JWTSecret          string
	GinMode            string
	TLSCertFile        string
	TLSKeyFile         string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	AllowedOrigins     []string
	SeedDemoUser       bool
}

func LoadServerConfig() (ServerConfig, error) {
	return LoadServerConfigFromEnv(osEnv{})
}

func LoadServerConfigFromEnv(env Env) (ServerConfig, error) {
	cfg := ServerConfig{
		Port:               3000,
		GinMode:            "release",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		AllowedOrigins:     []string{"http://localhost:5173"},
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return ServerConfig{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.JWTSecret = env.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return ServerConfig{}, fmt.Errorf("JWT_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("ACCESS_TOKEN_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid ACCESS_TOKEN_TTL_SECONDS")
		}
		cfg.AccessTokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("REFRESH_TOKEN_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid REFRESH_TOKEN_TTL_SECONDS")
		}
		cfg.RefreshTokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("CORS_ORIGINS"); raw != "" {
		origins := strings.Split(raw, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.AllowedOrigins = origins
	}

	cfg.SeedDemoUser = env.Getenv("SEED_DEMO_USER") == "1"

	return cfg, nil
}

// ClientConfig drives the CLI and the client core.
type ClientConfig struct {
	APIBaseURL string
	SocketURL  string
	// StatePath overrides where the session file lives; empty means the
	// default under the user config dir.
	StatePath string
}

func LoadClientConfig() ClientConfig {
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadClientConfigFromEnv(env Env) ClientConfig {
	cfg := ClientConfig{
		APIBaseURL: "http://localhost:3000/api/v1",
		SocketURL:  "ws://localhost:3000/socket.io/?EIO=4&transport=websocket",
	}
	if raw := env.Getenv("PANEL_API_URL"); raw != "" {
		cfg.APIBaseURL = raw
	}
	if raw := env.Getenv("PANEL_SOCKET_URL"); raw != "" {
		cfg.SocketURL = raw
	}
	cfg.StatePath = env.Getenv("PANEL_STATE_FILE")
	return cfg
}
