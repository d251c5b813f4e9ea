package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/infra"
	infraBQ "github.com/dvloznov/budget-tracker/internal/infra/bigquery"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

var withBigQuery = flag.Bool("bigquery", false, "Also create the BigQuery export table (needs BQ_PROJECT)")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}
	log, err := app.NewLogger(cfg, "migrate")
	if err != nil {
		fallback := logger.New(logger.Options{})
		fallback.Fatal().Err(err).Msg("Invalid LOG_LEVEL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, *withBigQuery, log, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

// run migrates the configured record store and, when asked, the BigQuery export table.
func run(ctx context.Context, cfg *config.Config, bigQuery bool, log zerolog.Logger, out io.Writer) error {
	st, err := infra.OpenStore(ctx, cfg.ConnectionURI(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate record store: %w", err)
	}
	fmt.Fprintln(out, "Record store is up to date.")

	if !bigQuery {
		return nil
	}

	bq := cfg.BigQuery
	exp, err := infraBQ.NewExporter(ctx, bq.Project, bq.Dataset, bq.Table, log)
	if err != nil {
		return err
	}
	defer exp.Close()

	if err := exp.EnsureTable(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "BigQuery table %s.%s.%s is ready.\n", bq.Project, bq.Dataset, bq.Table)
	return nil
}
