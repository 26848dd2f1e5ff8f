/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shelfkeeper/apiserver/config"
	"github.com/shelfkeeper/apiserver/internal/db"
	"github.com/shelfkeeper/apiserver/internal/logging"
	"github.com/shelfkeeper/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	Long: `Apply all up migrations. With DB_DRIVER=mongo this creates the
collection indexes instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		if cfg.Database.Driver == config.DriverMongo {
			database, err := db.OpenMongo(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connect mongo failed: %w", err)
			}
			defer func() {
				_ = database.Client().Disconnect(cmd.Context())
			}()
			if err := store.EnsureIndexes(cmd.Context(), database); err != nil {
				return err
			}
			logger.Info().Str("database", cfg.Mongo.Database).Msg("mongo indexes ensured")
			return nil
		}

		migrator, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info().Msg("no migrations to apply")
				return nil
			}
			return fmt.Errorf("migrate up failed: %w", err)
		}
		logger.Info().Msg("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.Database.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate down is only supported for %s", config.DriverPostgres)
		}
		logger := logging.New(cfg.Log)

		migrator, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if downSteps > 0 {
			err = migrator.Steps(-downSteps)
		} else {
			err = migrator.Down()
		}
		if err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migrate down failed: %w", err)
		}
		logger.Info().Int("steps", downSteps).Msg("migrations rolled back")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "internal/db/migrations", "directory containing migration files")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back, 0 for all")
}

func newMigrator(cfg config.Config) (*migrate.Migrate, error) {
	migrator, err := migrate.New("file://"+migrationsPath, db.DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}
