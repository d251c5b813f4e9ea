package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/budget-tracker/internal/artifacts"
)

// Artifact names, one file per part of the model state.
const (
	ModelArtifact   = "finance_model.json"
	ScalerArtifact  = "scaler.json"
	EncoderArtifact = "encoder.json"
)

// modelFile is the on-disk form of the forest plus training metadata.
type modelFile struct {
	Forest    *RandomForest `json:"forest"`
	Features  []string      `json:"features"`
	TrainedAt time.Time     `json:"trained_at"`
	Rows      int           `json:"rows"`
}

// saveState writes the encoder, the scaler and then the model.
func saveState(ctx context.Context, store artifacts.Store, s *ModelState) error {
	parts := []struct {
		name string
		v    interface{}
	}{
		{EncoderArtifact, s.Encoder},
		{ScalerArtifact, s.Scaler},
		{ModelArtifact, modelFile{Forest: s.Forest, Features: FeatureNames, TrainedAt: s.TrainedAt, Rows: s.Rows}},
	}

	for _, p := range parts {
		data, err := json.Marshal(p.v)
		if err != nil {
			return fmt.Errorf("saveState: marshal %s: %w", p.name, err)
		}
		if err := store.Save(ctx, p.name, data); err != nil {
			return fmt.Errorf("saveState: %w", err)
		}
	}
	return nil
}

// loadState reads all three artifacts. A missing artifact yields ErrArtifactNotFound.
func loadState(ctx context.Context, store artifacts.Store) (*ModelState, error) {
	var (
		mf  modelFile
		sc  MinMaxScaler
		enc LabelEncoder
	)
	parts := []struct {
		name string
		v    interface{}
	}{
		{ModelArtifact, &mf},
		{ScalerArtifact, &sc},
		{EncoderArtifact, &enc},
	}

	for _, p := range parts {
		data, err := store.Load(ctx, p.name)
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, p.name)
		}
		if err != nil {
			return nil, fmt.Errorf("loadState: %w", err)
		}
		if err := json.Unmarshal(data, p.v); err != nil {
			return nil, fmt.Errorf("loadState: decode %s: %w", p.name, err)
		}
	}

	if mf.Forest == nil || len(mf.Forest.Trees) == 0 {
		return nil, fmt.Errorf("loadState: %s holds no trees", ModelArtifact)
	}
	if len(sc.DataMin) != mf.Forest.NFeatures || len(sc.DataMax) != mf.Forest.NFeatures {
		return nil, fmt.Errorf("loadState: %s does not match %s", ScalerArtifact, ModelArtifact)
	}

	return &ModelState{
		Forest:    mf.Forest,
		Scaler:    &sc,
		Encoder:   &enc,
		TrainedAt: mf.TrainedAt,
		Rows:      mf.Rows,
	}, nil
}
