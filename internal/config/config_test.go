package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("ExternalCallTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{ExternalCallTimeoutSeconds: 15}
		assert.Equal(t, 15*time.Second, cfg.ExternalCallTimeout())
	})

	t.Run("AIEnabled requires an anthropic key", func(t *testing.T) {
		assert.False(t, (&Config{}).AIEnabled())
		assert.True(t, (&Config{AnthropicAPIKey: "sk-ant"}).AIEnabled())
	})

	t.Run("KnowledgeEnabled requires qdrant and an embedding key", func(t *testing.T) {
		assert.False(t, (&Config{QdrantURL: "http://localhost:6334"}).KnowledgeEnabled())
		assert.True(t, (&Config{QdrantURL: "http://localhost:6334", OpenAIAPIKey: "sk"}).KnowledgeEnabled())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "LOG_LEVEL", "SECRET_STORE",
		"RATE_LIMIT_BACKEND", "ALLOWED_ORIGINS", "SCHEDULER_WORKERS",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		for _, k := range []string{"PORT", "LOG_LEVEL", "SECRET_STORE", "RATE_LIMIT_BACKEND", "ALLOWED_ORIGINS", "SCHEDULER_WORKERS"} {
			os.Unsetenv(k)
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, SecretStoreDatabase, cfg.SecretStore)
		assert.Equal(t, RateLimitMemory, cfg.RateLimitBackend)
		assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
		assert.Equal(t, 4, cfg.SchedulerWorkers)
		assert.Equal(t, "https://api.clerk.com/v1", cfg.ClerkAPIURL)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("SECRET_STORE", "aws")
		os.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, SecretStoreAWS, cfg.SecretStore)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required REDIS_URL", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Unsetenv("REDIS_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			RedisURL:         "rediss://localhost:6379",
			SecretStore:      SecretStoreDatabase,
			RateLimitBackend: RateLimitMemory,
			AWSRegion:        "us-east-1",
		}
	}

	t.Run("accepts development defaults", func(t *testing.T) {
		assert.NoError(t, base().Validate(false))
	})

	t.Run("rejects unknown secret store", func(t *testing.T) {
		cfg := base()
		cfg.SecretStore = "vault"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("memory secret store is development only", func(t *testing.T) {
		cfg := base()
		cfg.SecretStore = SecretStoreMemory
		assert.NoError(t, cfg.Validate(false))
		assert.ErrorContains(t, cfg.Validate(true), "not allowed in production")
	})

	t.Run("rejects unknown rate limit backend", func(t *testing.T) {
		cfg := base()
		cfg.RateLimitBackend = "memcached"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects malformed encryption key", func(t *testing.T) {
		cfg := base()
		cfg.EncryptionKey = "abcd"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects webhook secret without prefix", func(t *testing.T) {
		cfg := base()
		cfg.ClerkWebhookSecret = "plain-secret"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("production requires jwt key and encryption key", func(t *testing.T) {
		cfg := base()
		cfg.ClerkWebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"
		assert.Error(t, cfg.Validate(true))

		cfg.ClerkJWTPublicKey = "-----BEGIN PUBLIC KEY-----"
		assert.Error(t, cfg.Validate(true))

		cfg.EncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("production rejects short webhook secret", func(t *testing.T) {
		cfg := base()
		cfg.ClerkJWTPublicKey = "-----BEGIN PUBLIC KEY-----"
		cfg.EncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
		cfg.ClerkWebhookSecret = "whsec_short"
		assert.Error(t, cfg.Validate(true))
	})
}
