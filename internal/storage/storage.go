// Package storage selects the persistence backend once per process and hands
// out instrumented engines from it.
package storage

import (
	"context"

	"github.com/rs/zerolog/log"

	"hbnb_api/internal/domain"
	"hbnb_api/internal/shared"
	"hbnb_api/internal/storage/file"
	"hbnb_api/internal/storage/relational"
)

// Open builds the provider chosen by HBNB_TYPE_STORAGE: "db" selects the
// relational backend, anything else the JSON file.
func Open(ctx context.Context, cfg shared.Config) (domain.Provider, error) {
	if !cfg.UseDB() {
		fs, err := file.Open(ctx, cfg.FilePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.FilePath).Msg("file storage ready")
		return Instrument(fs, "file"), nil
	}

	db, err := relational.Open(ctx, RelationalConfig(cfg))
	if err != nil {
		return nil, err
	}
	return Instrument(db, "db"), nil
}

// RelationalConfig derives the relational settings; HBNB_DB_DSN wins over
// the HBNB_MYSQL_* parts.
func RelationalConfig(cfg shared.Config) relational.Config {
	dsn := cfg.DBDSN
	dialect := relational.Dialect(cfg.DBDialect)
	if dsn == "" && (dialect == relational.DialectMySQL || dialect == "") {
		dsn = relational.MySQLDSN(cfg.MySQLUser, cfg.MySQLPwd, cfg.MySQLHost, cfg.MySQLDB)
	}
	if dialect == relational.DialectSQLite && dsn == "" {
		dsn = relational.SQLiteDSN("hbnb.db")
	}
	return relational.Config{Dialect: dialect, DSN: dsn, DropAll: cfg.DropAll()}
}
