package migrations

import (
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed *.sql
var embedMigrations embed.FS

// Migrate brings the schema up to date. The server refuses to start on
// a failed migration, so failures are fatal here.
func Migrate(connString string) {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("failed to set goose dialect")
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database for migrations")
	}
	defer db.Close()

	if err := goose.Up(db, "."); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	log.Info().Msg("migrations up to date")
}
