// Package cli provides the supportctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/supportdesk/support-server-go/internal/config"
	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/secrets"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool

	cfg *config.Config
	db  *database.DB
)

var rootCmd = &cobra.Command{
	Use:   "supportctl",
	Short: "Maintenance tasks for the support server",
	Long: `supportctl runs one-off maintenance tasks against the same database and
secret store the support server uses. It reads the server's environment
(DATABASE_URL, SECRET_STORE, ENCRYPTION_KEY, ...) and an optional .env file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), config.DBPingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

// secretStore builds the store the server would use for the current config.
func secretStore(ctx context.Context) (*secrets.Store, error) {
	var backend secrets.Backend
	switch cfg.SecretStore {
	case config.SecretStoreAWS:
		awsStore, err := secrets.NewAWSStore(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		backend = awsStore
	case config.SecretStoreMemory:
		return nil, fmt.Errorf("SECRET_STORE=memory lives inside the server process and cannot be written from supportctl")
	default:
		if cfg.EncryptionKey == "" {
			return nil, fmt.Errorf("ENCRYPTION_KEY is required when SECRET_STORE=database")
		}
		backend = secrets.NewDatabaseStore(repository.NewSecretRepository(db.DB), cfg.EncryptionKey)
	}
	return secrets.NewStore(backend, cfg.ExternalCallTimeout()), nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(putSecretCmd)
}
