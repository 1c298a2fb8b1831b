package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/config"
	"github.com/campusnotes/notes-admin/internal/database"
	"github.com/campusnotes/notes-admin/internal/logger"
)

// addDatabaseFlag registers --database, defaulting to DATABASE_URL
func addDatabaseFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "database", config.DatabaseURL(), "path to the admin SQLite database")
}

// cliLogger writes human-readable logs to the command's stderr
func cliLogger(cmd *cobra.Command) zerolog.Logger {
	return logger.New(cmd.ErrOrStderr(), "info", "console")
}

// openCatalog opens and migrates the database. The returned func closes it.
func openCatalog(url string, log zerolog.Logger) (*catalog.Service, func(), error) {
	db, err := database.Open(url, logger.Component(log, "database"))
	if err != nil {
		return nil, nil, err
	}
	return catalog.New(db), closer(db, log), nil
}

// openScratchCatalog opens a throwaway in-memory database for dry runs
func openScratchCatalog(log zerolog.Logger) (*catalog.Service, func(), error) {
	db, err := database.OpenMemory("seed-dry-run")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	return catalog.New(db), closer(db, log), nil
}

func closer(db *gorm.DB, log zerolog.Logger) func() {
	return func() {
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("Error closing database")
		}
	}
}

// commandContext is the command's context, or Background when the command
// was not started through Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
