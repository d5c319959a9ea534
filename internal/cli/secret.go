package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/secrets"
	"github.com/supportdesk/support-server-go/internal/util"
)

var putSecretCmd = &cobra.Command{
	Use:   "put-secret <organization-id> <service> <json-value>",
	Short: "Store a plugin credential for an organization",
	Long: `Store a plugin credential for an organization and mark the plugin connected.

Examples:
  supportctl put-secret org_abc123 vapi '{"publicApiKey":"pk_...","privateApiKey":"sk_..."}'`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := secretStore(cmd.Context())
		if err != nil {
			return err
		}
		plugins := repository.NewPluginRepository(db.DB)
		return putSecret(cmd.Context(), store, plugins, args[0], model.PluginService(args[1]), args[2], cmd.OutOrStdout())
	},
}

// SecretWriter is the part of *secrets.Store putSecret uses.
type SecretWriter interface {
	Upsert(ctx context.Context, name string, value any) error
}

// PluginWriter is the part of the plugin repository putSecret uses.
type PluginWriter interface {
	Upsert(ctx context.Context, params model.UpsertPluginParams) (*model.Plugin, error)
}

func putSecret(ctx context.Context, store SecretWriter, plugins PluginWriter, organizationID string, svc model.PluginService, raw string, out io.Writer) error {
	if err := util.ValidateOrganizationID(organizationID); err != nil {
		return err
	}
	if !svc.Valid() {
		return fmt.Errorf("unsupported plugin service %q", svc)
	}

	var value map[string]any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("value must be a JSON object: %w", err)
	}

	name := secrets.SecretName(organizationID, string(svc))
	if err := store.Upsert(ctx, name, value); err != nil {
		return err
	}
	if _, err := plugins.Upsert(ctx, model.UpsertPluginParams{
		OrganizationID: organizationID,
		Service:        svc,
		SecretName:     name,
	}); err != nil {
		return fmt.Errorf("upsert plugin: %w", err)
	}

	fmt.Fprintf(out, "Stored %s\n", name)
	return nil
}
