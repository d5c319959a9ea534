package repository

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/support-server-go/migrations"
)

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("rerunning applies nothing new", func(t *testing.T) {
		require.NoError(t, db.Migrate(ctx, migrations.FS))

		var names []string
		require.NoError(t, db.SelectContext(ctx, &names, `SELECT name FROM schema_migrations ORDER BY name`))
		assert.Equal(t, []string{"001_init.sql"}, names)
	})

	t.Run("new files are applied once", func(t *testing.T) {
		fsys := fstest.MapFS{
			"001_init.sql":  {Data: []byte(`SELECT 1`)},
			"900_probe.sql": {Data: []byte(`CREATE TABLE migrate_probe (id INT)`)},
		}
		defer db.ExecContext(ctx, `DROP TABLE IF EXISTS migrate_probe; DELETE FROM schema_migrations WHERE name = '900_probe.sql'`)

		require.NoError(t, db.Migrate(ctx, fsys))
		// a second CREATE TABLE would fail if the file ran again
		require.NoError(t, db.Migrate(ctx, fsys))
	})

	t.Run("a failing file is not recorded", func(t *testing.T) {
		fsys := fstest.MapFS{"950_broken.sql": {Data: []byte(`CREATE TABLE`)}}
		assert.Error(t, db.Migrate(ctx, fsys))

		var count int
		require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schema_migrations WHERE name = '950_broken.sql'`))
		assert.Zero(t, count)
	})
}
