package app

import (
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shandysiswandi/gomfa/internal/app/migrations"
)

// initMigration applies the embedded migrations when database.migrate_on_start is set.
func (a *App) initMigration() {
	if !a.config.GetBool("database.migrate_on_start") {
		return
	}

	db := stdlib.OpenDBFromPool(a.dbConn)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		slog.Error("failed to init migration provider", "error", err)
		os.Exit(1)
	}

	results, err := provider.Up(a.ctx)
	if err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	for _, res := range results {
		slog.Info("migration applied", "version", res.Source.Version, "path", res.Source.Path, "duration", res.Duration)
	}
}
