package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/supportdesk/support-server-go/internal/jobs"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/service"
	"github.com/supportdesk/support-server-go/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired contact sessions",
	Long: `Delete every contact session whose expiry has passed, the same sweep the
server runs hourly. Prints {"deletedCount": N, "timestamp": ...} as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions := service.NewContactSessionService(
			repository.NewContactSessionRepository(db.DB),
			repository.NewConversationRepository(db.DB),
			service.NewMemoryRateLimiter(),
		)
		return runCleanup(cmd.Context(), sessions, cmd.OutOrStdout())
	},
}

func runCleanup(ctx context.Context, sessions jobs.ExpiredSessionCleaner, out io.Writer) error {
	result, err := sessions.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
