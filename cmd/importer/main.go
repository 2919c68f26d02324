// Command importer copies the JSON file store into the relational database.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"hbnb_api/internal/adapters/observability"
	"hbnb_api/internal/app"
	"hbnb_api/internal/shared"
	"hbnb_api/internal/storage"
	"hbnb_api/internal/storage/file"
	"hbnb_api/internal/storage/relational"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	src := flag.String("file", cfg.FilePath, "JSON document to import")
	flag.Parse()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	rc := storage.RelationalConfig(cfg)
	log.Info().
		Str("file", *src).
		Str("dialect", string(rc.Dialect)).
		Int("workers", cfg.ImportWorkers).
		Int("batch", cfg.ImportBatchSize).
		Msg("importer starting")

	fs, err := file.Open(ctx, *src)
	if err != nil {
		log.Fatal().Err(err).Msg("read file store failed")
	}

	db, err := relational.Open(ctx, rc)
	if err != nil {
		log.Fatal().Err(err).Msg("open database failed")
	}
	defer db.Close()

	imp := app.NewImportService(storage.Instrument(db, "db"), cfg.ImportWorkers, cfg.ImportBatchSize)
	rep, err := imp.Import(ctx, fs)
	if err != nil {
		log.Error().Err(err).Msg("import interrupted")
	}
	log.Info().Str("file", fs.Path()).Int("imported", rep.Imported).Int("failed", rep.Failed).Msg("import completed")
}
