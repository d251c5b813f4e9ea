// Package predictor trains and serves a random-forest regressor that
// estimates a spending amount from a category and calendar features.
package predictor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dvloznov/budget-tracker/internal/artifacts"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionLister is the part of the Record Store training reads from.
type TransactionLister interface {
	ListTransactions(ctx context.Context) ([]*domain.Transaction, error)
}

// Options tunes training.
type Options struct {
	Trees int   // forest size, DefaultTrees when <= 0
	Seed  int64 // 0 seeds from the clock
}

// TrainResult describes a completed training run.
type TrainResult struct {
	Rows       int       `json:"rows"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
	Categories int       `json:"categories"`
	TrainedAt  time.Time `json:"trained_at"`
}

// Predictor owns the model lifecycle. Train and lazy loads are serialised by
// mu; Predict reads the published state without locking once one exists.
type Predictor struct {
	txns      TransactionLister
	artifacts artifacts.Store
	opts      Options
	log       zerolog.Logger

	mu     sync.Mutex
	holder StateHolder
	now    func() time.Time
}

// New creates a Predictor with no resident model.
func New(txns TransactionLister, store artifacts.Store, opts Options, log zerolog.Logger) *Predictor {
	if opts.Trees <= 0 {
		opts.Trees = DefaultTrees
	}
	return &Predictor{
		txns:      txns,
		artifacts: store,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// State returns the resident model, or nil if none has been trained or loaded.
func (p *Predictor) State() *ModelState {
	return p.holder.Load()
}

// Train fits a new model on every expense with a parseable date, persists
// it, and then makes it the resident model.
func (p *Predictor) Train(ctx context.Context) (TrainResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	txns, err := p.txns.ListTransactions(ctx)
	if err != nil {
		return TrainResult{}, fmt.Errorf("Train: list transactions: %w", err)
	}

	var (
		rows    []Features
		targets []float64
	)
	for _, t := range txns {
		f, ok := FeaturesFromTransaction(t)
		if !ok {
			continue
		}
		rows = append(rows, f)
		targets = append(targets, t.Amount)
	}
	if len(rows) == 0 {
		return TrainResult{}, ErrNoData
	}

	categories := make([]string, len(rows))
	for i, f := range rows {
		categories[i] = f.Category
	}
	enc := FitLabelEncoder(categories)

	X := make([][]float64, len(rows))
	for i, f := range rows {
		// Every category is in the encoder, so this cannot fail.
		X[i], _ = f.vector(enc)
	}
	scaler := FitMinMaxScaler(X)
	scaled, err := scaler.TransformAll(X)
	if err != nil {
		return TrainResult{}, fmt.Errorf("Train: scale: %w", err)
	}

	rng := rand.New(rand.NewSource(p.seed()))
	trainIdx, testIdx := splitTrainTest(len(rows), 0.2, rng)

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]float64, len(trainIdx))
	for k, i := range trainIdx {
		trainX[k] = scaled[i]
		trainY[k] = targets[i]
	}

	forest, err := FitRandomForest(trainX, trainY, p.opts.Trees, rng)
	if err != nil {
		return TrainResult{}, fmt.Errorf("Train: fit: %w", err)
	}

	state := &ModelState{
		Forest:    forest,
		Scaler:    scaler,
		Encoder:   enc,
		TrainedAt: p.now().UTC(),
		Rows:      len(rows),
	}
	if err := saveState(ctx, p.artifacts, state); err != nil {
		return TrainResult{}, fmt.Errorf("Train: persist: %w", err)
	}
	p.holder.Store(state)

	res := TrainResult{
		Rows:       len(rows),
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
		Categories: len(enc.Classes),
		TrainedAt:  state.TrainedAt,
	}
	p.log.Info().
		Int("rows", res.Rows).
		Int("train_rows", res.TrainRows).
		Int("categories", res.Categories).
		Int("trees", len(forest.Trees)).
		Msg("Model trained")
	return res, nil
}

// Predict returns the estimated amount rounded to two decimals. If no model
// is resident it loads the persisted artifacts first.
func (p *Predictor) Predict(ctx context.Context, f Features) (float64, error) {
	state, err := p.resident(ctx)
	if err != nil {
		return 0, err
	}

	x, err := f.vector(state.Encoder)
	if err != nil {
		return 0, err
	}
	x, err = state.Scaler.Transform(x)
	if err != nil {
		return 0, fmt.Errorf("Predict: scale: %w", err)
	}
	y, err := state.Forest.Predict(x)
	if err != nil {
		return 0, fmt.Errorf("Predict: %w", err)
	}
	return decimal.NewFromFloat(y).Round(2).InexactFloat64(), nil
}

// resident returns the published state, loading it from the artifact store on first use.
func (p *Predictor) resident(ctx context.Context) (*ModelState, error) {
	if s := p.holder.Load(); s != nil {
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.holder.Load(); s != nil {
		return s, nil
	}
	s, err := loadState(ctx, p.artifacts)
	if err != nil {
		return nil, err
	}
	p.holder.Store(s)
	p.log.Info().Time("trained_at", s.TrainedAt).Int("rows", s.Rows).Msg("Model loaded from artifacts")
	return s, nil
}

func (p *Predictor) seed() int64 {
	if p.opts.Seed != 0 {
		return p.opts.Seed
	}
	return p.now().UnixNano()
}

// splitTrainTest shuffles 0..n-1 and holds out ceil(testFrac*n) indices.
// When that would leave nothing to train on, every index trains.
func splitTrainTest(n int, testFrac float64, rng *rand.Rand) (train, test []int) {
	perm := rng.Perm(n)
	nTest := int(math.Ceil(testFrac * float64(n)))
	if n-nTest <= 0 {
		return perm, nil
	}
	return perm[nTest:], perm[:nTest]
}
