package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyExists = errors.New("secret already exists")
	ErrNotFound      = errors.New("secret not found")
)

// Backend is a named string store. Create must fail with ErrAlreadyExists
// when the name is taken and Get with ErrNotFound when it is missing.
type Backend interface {
	Create(ctx context.Context, name, value string) error
	Put(ctx context.Context, name, value string) error
	Get(ctx context.Context, name string) (string, error)
}

// SecretName is the per-tenant name of a service credential.
func SecretName(organizationID, service string) string {
	return fmt.Sprintf("tenant/%s/%s", organizationID, service)
}

type Store struct {
	backend Backend
	timeout time.Duration
}

func NewStore(backend Backend, timeout time.Duration) *Store {
	return &Store{backend: backend, timeout: timeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Upsert stores value as JSON under name, creating it or replacing the
// current version.
func (s *Store) Upsert(ctx context.Context, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode secret: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err = s.backend.Create(ctx, name, string(encoded))
	if errors.Is(err, ErrAlreadyExists) {
		err = s.backend.Put(ctx, name, string(encoded))
	}
	if err != nil {
		return fmt.Errorf("upsert secret %s: %w", name, err)
	}
	return nil
}

func (s *Store) GetSecretValue(ctx context.Context, name string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.backend.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	return value, nil
}

// ParseSecretString decodes a JSON secret. It returns nil for empty or
// malformed input and never logs the raw value.
func ParseSecretString[T any](raw, name string) *T {
	if raw == "" {
		return nil
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Warn().Str("secretName", name).Str("error", redactedError(err)).Msg("failed to parse secret")
		return nil
	}
	return &out
}

// redactedError keeps the error class but drops any echoed input.
func redactedError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("unexpected %s for field %q", typeErr.Value, typeErr.Field)
	default:
		return "malformed secret"
	}
}
