// Package migrate creates or upgrades the database schema.
package migrate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/transformer-inspect/internal/app"
	"github.com/tphakala/transformer-inspect/internal/conf"
	"github.com/tphakala/transformer-inspect/internal/datastore"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	var reset, yes bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long:  "Create or upgrade the database schema. With --reset the existing data is deleted first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset && !yes {
				return fmt.Errorf("--reset deletes every transformer, inspection and annotation; confirm with --yes")
			}

			central, err := logger.NewCentralLogger(&settings.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = central.Close() }()
			log := central.Root().Module("datastore")

			db, err := app.NewDatabase(settings, log)
			if err != nil {
				return err
			}
			if reset {
				if db, err = resetDatabase(settings, db, log); err != nil {
					return err
				}
			}
			defer func() { _ = db.Close() }()

			if err := db.Initialize(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date: %s\n", db.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the existing database before migrating")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm --reset")

	return cmd
}

// resetDatabase deletes the schema. SQLite closes the file on delete, so it
// is opened again.
func resetDatabase(settings *conf.Settings, db datastore.Manager, log logger.Logger) (datastore.Manager, error) {
	if !db.Exists() {
		return db, nil
	}
	if err := db.Delete(); err != nil {
		_ = db.Close()
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Deleted database %s\n", db.Path())
	if db.IsMySQL() {
		return db, nil
	}
	return app.NewDatabase(settings, log)
}
