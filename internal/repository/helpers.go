package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/supportdesk/support-server-go/internal/database"
)

// findOne runs a single-row query into a fresh T. A missing row yields
// (nil, nil) so Find* callers can tell "absent" from a failed query.
func findOne[T any](ctx context.Context, db database.DBTX, query string, args ...any) (*T, error) {
	var dest T
	err := db.GetContext(ctx, &dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dest, nil
}
