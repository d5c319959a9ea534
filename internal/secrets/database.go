package secrets

import (
	"context"
	"fmt"

	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/util"
)

// DatabaseStore keeps secrets AES-GCM encrypted in the secrets table.
type DatabaseStore struct {
	repo repository.SecretRepository
	key  string
}

func NewDatabaseStore(repo repository.SecretRepository, encryptionKey string) *DatabaseStore {
	return &DatabaseStore{repo: repo, key: encryptionKey}
}

func (s *DatabaseStore) Create(ctx context.Context, name, value string) error {
	ciphertext, err := util.Encrypt(s.key, value, name)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}
	created, err := s.repo.Insert(ctx, name, ciphertext)
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

func (s *DatabaseStore) Put(ctx context.Context, name, value string) error {
	ciphertext, err := util.Encrypt(s.key, value, name)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}
	updated, err := s.repo.Update(ctx, name, ciphertext)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) Get(ctx context.Context, name string) (string, error) {
	ciphertext, err := s.repo.FindCiphertext(ctx, name)
	if err != nil {
		return "", err
	}
	if ciphertext == nil {
		return "", ErrNotFound
	}
	plaintext, err := util.Decrypt(s.key, *ciphertext, name)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	return plaintext, nil
}
