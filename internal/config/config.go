package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type SecretStoreBackend string

const (
	SecretStoreDatabase SecretStoreBackend = "database"
	SecretStoreAWS      SecretStoreBackend = "aws"
	SecretStoreMemory   SecretStoreBackend = "memory"
)

type RateLimitBackend string

const (
	RateLimitMemory RateLimitBackend = "memory"
	RateLimitRedis  RateLimitBackend = "redis"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	ClerkJWTPublicKey  string `env:"CLERK_JWT_PUBLIC_KEY"`
	ClerkSecretKey     string `env:"CLERK_SECRET_KEY"`
	ClerkAPIURL        string `env:"CLERK_API_URL" envDefault:"https://api.clerk.com/v1"`
	ClerkWebhookSecret string `env:"CLERK_WEBHOOK_SECRET"`

	SecretStore   SecretStoreBackend `env:"SECRET_STORE" envDefault:"database"`
	AWSRegion     string             `env:"AWS_REGION" envDefault:"us-east-1"`
	EncryptionKey string             `env:"ENCRYPTION_KEY"`

	RateLimitBackend RateLimitBackend `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`

	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AIModel          string `env:"AI_MODEL" envDefault:"claude-3-5-haiku-latest"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	EmbedModel       string `env:"EMBED_MODEL" envDefault:"text-embedding-3-small"`
	QdrantURL        string `env:"QDRANT_URL"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"knowledge"`

	SchedulerWorkers           int `env:"SCHEDULER_WORKERS" envDefault:"4"`
	ExternalCallTimeoutSeconds int `env:"EXTERNAL_CALL_TIMEOUT_SECONDS" envDefault:"15"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ExternalCallTimeout() time.Duration {
	return time.Duration(c.ExternalCallTimeoutSeconds) * time.Second
}

// AIEnabled reports whether the support agent has a model to talk to.
func (c *Config) AIEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// KnowledgeEnabled reports whether knowledge search can embed queries and reach qdrant.
func (c *Config) KnowledgeEnabled() bool {
	return c.QdrantURL != "" && c.OpenAIAPIKey != ""
}

func (c *Config) Validate(isProduction bool) error {
	switch c.SecretStore {
	case SecretStoreDatabase:
		if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	case SecretStoreAWS:
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required when SECRET_STORE=aws")
		}
	case SecretStoreMemory:
		if isProduction {
			return fmt.Errorf("SECRET_STORE=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("SECRET_STORE must be one of: database, aws, memory (got %q)", c.SecretStore)
	}

	switch c.RateLimitBackend {
	case RateLimitMemory, RateLimitRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of: memory, redis (got %q)", c.RateLimitBackend)
	}

	if c.ClerkWebhookSecret != "" && !strings.HasPrefix(c.ClerkWebhookSecret, "whsec_") {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET must start with whsec_")
	}

	if isProduction {
		if c.ClerkJWTPublicKey == "" {
			return fmt.Errorf("CLERK_JWT_PUBLIC_KEY is required in production")
		}
		if err := validateSecret("CLERK_WEBHOOK_SECRET", c.ClerkWebhookSecret); err != nil {
			return err
		}
		if c.SecretStore == SecretStoreDatabase && c.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in production when SECRET_STORE=database")
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.RateLimitBackend == RateLimitMemory {
			log.Warn().Msg("RATE_LIMIT_BACKEND=memory in production: limits are per instance")
		}
		if c.ClerkSecretKey == "" {
			log.Warn().Msg("CLERK_SECRET_KEY is empty in production: membership caps will not be updated")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
