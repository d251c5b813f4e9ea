// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/artifacts"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/importer"
	"github.com/dvloznov/budget-tracker/internal/infra"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/predictor"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// App holds the services built from one Config.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	Store     store.Store
	Artifacts artifacts.Store
	Ledger    *ledger.Ledger
	Importer  *importer.Importer
	Predictor *predictor.Predictor

	closeArtifacts func() error
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, service string) (zerolog.Logger, error) {
	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	return logger.New(logger.Options{
		Level:   lvl,
		Format:  logger.Format(cfg.LogFormat),
		Out:     os.Stderr,
		Service: service,
	}), nil
}

// Open connects the record store and artifact store and builds the services on top.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	st, err := infra.OpenStore(ctx, cfg.ConnectionURI(), cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	arts, closeArts, err := OpenArtifacts(ctx, cfg.Model, log)
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("Open: %w", err)
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Store:     st,
		Artifacts: arts,
		Ledger:    ledger.New(st, log),
		Importer:  importer.New(st, log),
		Predictor: predictor.New(st, arts, predictor.Options{
			Trees: cfg.Model.Trees,
			Seed:  cfg.Model.Seed,
		}, log),
		closeArtifacts: closeArts,
	}, nil
}

// OpenArtifacts returns the GCS store when ARTIFACT_BUCKET is set and the
// local directory store otherwise. The returned func releases the store.
func OpenArtifacts(ctx context.Context, m config.Model, log zerolog.Logger) (artifacts.Store, func() error, error) {
	if m.ArtifactBucket != "" {
		gcs, err := artifacts.NewGCSStore(ctx, m.ArtifactBucket, m.ArtifactPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenArtifacts: %w", err)
		}
		log.Info().Str("bucket", m.ArtifactBucket).Str("prefix", m.ArtifactPrefix).Msg("Using GCS model artifacts")
		return gcs, gcs.Close, nil
	}

	log.Info().Str("dir", m.ArtifactDir).Msg("Using local model artifacts")
	return artifacts.NewLocalStore(m.ArtifactDir), func() error { return nil }, nil
}

// Close releases the artifact store and the record store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.closeArtifacts != nil {
		if err := a.closeArtifacts(); err != nil {
			errs = append(errs, fmt.Errorf("close artifacts: %w", err))
		}
	}
	if err := a.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
