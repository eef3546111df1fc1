package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the Mira server.
type Config struct {
	Port      int             `toml:"port"`
	Version   string          `toml:"version"`
	Database  DatabaseConfig  `toml:"database"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Auth      AuthConfig      `toml:"auth"`
	Agent     AgentConfig     `toml:"agent"`
	Cache     CacheConfig     `toml:"cache"`
	Chat      ChatConfig      `toml:"chat"`
}

// DatabaseConfig selects the store. An empty URL uses in-memory stores.
type DatabaseConfig struct {
	URL            string `toml:"url"`
	MaxConnections int    `toml:"max_connections"`
}

type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type AuthConfig struct {
	// APIKeys enables API-key auth on /api/v1 when non-empty.
	APIKeys []string `toml:"api_keys"`
}

type AgentConfig struct {
	Timeout    time.Duration `toml:"timeout"`
	MaxRetries int           `toml:"max_retries"`
	// ClientSecret is served by get_client_secret before asking adapters.
	ClientSecret string `toml:"client_secret"`
	// RequireProvider rejects chat when only the mock adapter is available.
	RequireProvider bool `toml:"require_provider"`
}

type CacheConfig struct {
	IntentTTL       time.Duration `toml:"intent_ttl"`
	IntentMaxSize   int           `toml:"intent_max_size"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
	// ModelConfigTTL of zero keeps tenant configs until invalidated.
	ModelConfigTTL time.Duration `toml:"model_config_ttl"`
}

type ChatConfig struct {
	MaxMessages      int      `toml:"max_messages"`
	MaxContentLength int      `toml:"max_content_length"`
	CORSOrigins      []string `toml:"cors_origins"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:    8080,
		Version: "0.1.0",
		Database: DatabaseConfig{
			MaxConnections: 25,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "mira-orchestrator",
		},
		Agent: AgentConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Cache: CacheConfig{
			IntentTTL:       5 * time.Minute,
			IntentMaxSize:   1000,
			CleanupInterval: time.Minute,
		},
		Chat: ChatConfig{
			MaxMessages:      100,
			MaxContentLength: 50000,
			CORSOrigins:      []string{"*"},
		},
	}
}

// Load builds the configuration: defaults, then the TOML file named by
// MIRA_CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("MIRA_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	cfg.Port = envInt("MIRA_PORT", cfg.Port)
	cfg.Version = envStr("MIRA_VERSION", cfg.Version)

	cfg.Database.URL = envStr("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = envInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)

	cfg.Telemetry.Enabled = envBool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.ServiceName = envStr("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)

	cfg.Auth.APIKeys = envList("MIRA_API_KEYS", cfg.Auth.APIKeys)

	cfg.Agent.Timeout = envDuration("AGENT_TIMEOUT", cfg.Agent.Timeout)
	cfg.Agent.MaxRetries = envInt("AGENT_MAX_RETRIES", cfg.Agent.MaxRetries)
	cfg.Agent.ClientSecret = envStr("AGENT_CLIENT_SECRET", cfg.Agent.ClientSecret)
	cfg.Agent.RequireProvider = envBool("AGENT_REQUIRE_PROVIDER", cfg.Agent.RequireProvider)

	cfg.Cache.IntentTTL = envDuration("INTENT_CACHE_TTL", cfg.Cache.IntentTTL)
	cfg.Cache.IntentMaxSize = envInt("INTENT_CACHE_MAX_SIZE", cfg.Cache.IntentMaxSize)
	cfg.Cache.CleanupInterval = envDuration("INTENT_CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.ModelConfigTTL = envDuration("MODEL_CONFIG_CACHE_TTL", cfg.Cache.ModelConfigTTL)

	cfg.Chat.MaxMessages = envInt("CHAT_MAX_MESSAGES", cfg.Chat.MaxMessages)
	cfg.Chat.MaxContentLength = envInt("CHAT_MAX_CONTENT_LENGTH", cfg.Chat.MaxContentLength)
	cfg.Chat.CORSOrigins = envList("CORS_ALLOWED_ORIGINS", cfg.Chat.CORSOrigins)

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("30s") or bare milliseconds ("30000").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
