package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supportdesk/support-server-go/internal/database"
)

// SecretRepository stores encrypted secret blobs. Callers encrypt before
// handing values over; this layer never sees plaintext.
type SecretRepository interface {
	// Insert creates name only if it does not exist yet. created is false on conflict.
	Insert(ctx context.Context, name, ciphertext string) (created bool, err error)
	Update(ctx context.Context, name, ciphertext string) (updated bool, err error)
	FindCiphertext(ctx context.Context, name string) (*string, error)
}

type secretRepo struct {
	db database.DBTX
}

func NewSecretRepository(db *sqlx.DB) SecretRepository {
	return &secretRepo{db: db}
}

func (r *secretRepo) Insert(ctx context.Context, name, ciphertext string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO secrets (name, ciphertext)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, ciphertext)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func (r *secretRepo) Update(ctx context.Context, name, ciphertext string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE secrets SET ciphertext = $2, updated_at = $3
		WHERE name = $1
	`, name, ciphertext, time.Now())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func (r *secretRepo) FindCiphertext(ctx context.Context, name string) (*string, error) {
	return findOne[string](ctx, r.db, `
		SELECT ciphertext FROM secrets WHERE name = $1
	`, name)
}
