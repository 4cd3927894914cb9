// Package config provides configuration for the copilot backend.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database holding sessions, turns and traces
	DatabaseURL string

	// Completion provider
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
	LLMTimeout    time.Duration

	// Hosted SQL database
	CloudflareAPIToken  string
	CloudflareAccountID string
	D1DatabaseID        string
	D1BaseURL           string
	D1Timeout           time.Duration

	// Serverless deployments
	DenoDeployAccessToken string
	DenoDeployOrgID       string
	DenoDeployBaseURL     string

	// Timeouts
	DemoLatency         time.Duration
	ConfirmationTimeout time.Duration
	TurnTimeout         time.Duration

	SessionCacheSize int

	// Rego module deciding what happens to a query; empty uses the default
	PolicyPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:              getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:           getEnv("DATABASE_URL", "file:autobuild.db?cache=shared&mode=rwc"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-3.5-turbo-0125"),
		LLMTimeout:            time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		CloudflareAPIToken:    getEnv("CLOUDFLARE_API_TOKEN", ""),
		CloudflareAccountID:   getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		D1DatabaseID:          getEnv("D1_DATABASE_ID", ""),
		D1BaseURL:             getEnv("D1_BASE_URL", "https://api.cloudflare.com/client/v4"),
		D1Timeout:             time.Duration(getEnvInt("D1_TIMEOUT_MS", 30000)) * time.Millisecond,
		DenoDeployAccessToken: getEnv("DENO_DEPLOY_ACCESS_TOKEN", ""),
		DenoDeployOrgID:       getEnv("DENO_DEPLOY_ORG_ID", ""),
		DenoDeployBaseURL:     getEnv("DENO_DEPLOY_BASE_URL", "https://api.deno.com/v1"),
		DemoLatency:           time.Duration(getEnvInt("DEMO_LATENCY_MS", 1000)) * time.Millisecond,
		ConfirmationTimeout:   time.Duration(getEnvInt("CONFIRMATION_TIMEOUT_MS", 600000)) * time.Millisecond,
		TurnTimeout:           time.Duration(getEnvInt("TURN_TIMEOUT_MS", 300000)) * time.Millisecond,
		SessionCacheSize:      getEnvInt("SESSION_CACHE_SIZE", 1024),
		PolicyPath:            getEnv("POLICY_PATH", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// DeployEnabled reports whether query endpoints should be deployed.
func (c *Config) DeployEnabled() bool {
	return c.DenoDeployAccessToken != "" && c.DenoDeployOrgID != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
