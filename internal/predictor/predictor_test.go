package predictor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/budget-tracker/internal/artifacts"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/rs/zerolog"
)

type mockLister struct {
	txns []*domain.Transaction
	err  error
}

func (m *mockLister) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	return m.txns, m.err
}

// weekdayHistory builds expenses where Food costs 10 on weekdays and 30 at weekends.
func weekdayHistory() []*domain.Transaction {
	var txns []*domain.Transaction
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday
	for d := 0; d < 56; d++ {
		day := start.AddDate(0, 0, d)
		amount := 10.0
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			amount = 30
		}
		txns = append(txns,
			&domain.Transaction{Date: day.Format("2006-01-02"), Category: "Food", Type: domain.TypeExpense, Amount: amount},
			&domain.Transaction{Date: day.Format(time.RFC3339), Category: "Transport", Type: domain.TypeExpense, Amount: 5},
		)
	}
	txns = append(txns,
		&domain.Transaction{Date: "2024-01-05", Category: "Salary", Type: domain.TypeIncome, Amount: 3000},
		&domain.Transaction{Date: "not a date", Category: "Misc", Type: domain.TypeExpense, Amount: 99},
	)
	return txns
}

func newTestPredictor(t *testing.T, txns []*domain.Transaction) (*Predictor, *artifacts.LocalStore) {
	t.Helper()
	store := artifacts.NewLocalStore(t.TempDir())
	p := New(&mockLister{txns: txns}, store, Options{Trees: 20, Seed: 7}, zerolog.Nop())
	return p, store
}

func TestPredict_BeforeTrainWithoutArtifacts(t *testing.T) {
	p, _ := newTestPredictor(t, nil)

	_, err := p.Predict(context.Background(), Features{Category: "Food", Month: 1})
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
	if p.State() != nil {
		t.Error("no state should be resident after a failed load")
	}
}

func TestTrain_NoData(t *testing.T) {
	tests := []struct {
		name string
		txns []*domain.Transaction
	}{
		{"empty collection", nil},
		{"only income", []*domain.Transaction{{Date: "2024-01-01", Category: "Salary", Type: domain.TypeIncome, Amount: 10}}},
		{"no parseable dates", []*domain.Transaction{{Date: "soon", Category: "Food", Type: domain.TypeExpense, Amount: 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPredictor(t, tt.txns)
			if _, err := p.Train(context.Background()); !errors.Is(err, ErrNoData) {
				t.Fatalf("expected ErrNoData, got %v", err)
			}
		})
	}
}

func TestTrain_StoreError(t *testing.T) {
	store := artifacts.NewLocalStore(t.TempDir())
	p := New(&mockLister{err: errors.New("db down")}, store, Options{Seed: 1}, zerolog.Nop())

	_, err := p.Train(context.Background())
	if err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestTrainPredict(t *testing.T) {
	p, _ := newTestPredictor(t, weekdayHistory())
	ctx := context.Background()

	res, err := p.Train(ctx)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if res.Rows != 112 {
		t.Errorf("Rows = %d, want 112 usable expense rows", res.Rows)
	}
	if res.TestRows != 23 || res.TrainRows != 89 {
		t.Errorf("split = %d/%d, want 89/23", res.TrainRows, res.TestRows)
	}
	if res.Categories != 2 {
		t.Errorf("Categories = %d, want 2", res.Categories)
	}

	weekday, err := p.Predict(ctx, Features{Category: "Food", DayOfWeek: 2, Month: 1})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	weekend, err := p.Predict(ctx, Features{Category: "Food", DayOfWeek: 6, Month: 1, IsWeekend: true})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if weekend <= weekday {
		t.Errorf("expected weekend spend (%v) above weekday spend (%v)", weekend, weekday)
	}

	transport, err := p.Predict(ctx, Features{Category: "Transport", DayOfWeek: 3, Month: 2})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if transport != 5 {
		t.Errorf("Transport prediction = %v, want 5", transport)
	}
}

func TestPredict_UnknownCategory(t *testing.T) {
	p, _ := newTestPredictor(t, weekdayHistory())
	ctx := context.Background()

	if _, err := p.Train(ctx); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	_, err := p.Predict(ctx, Features{Category: "Salary", Month: 1})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestPredict_LazyReload(t *testing.T) {
	txns := weekdayHistory()
	first, store := newTestPredictor(t, txns)
	ctx := context.Background()

	if _, err := first.Train(ctx); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	want, err := first.Predict(ctx, Features{Category: "Food", DayOfWeek: 5, Month: 1, IsWeekend: true})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	// A fresh predictor over the same artifacts simulates a restart.
	restarted := New(&mockLister{}, store, Options{}, zerolog.Nop())
	if restarted.State() != nil {
		t.Fatal("restarted predictor should start untrained")
	}
	got, err := restarted.Predict(ctx, Features{Category: "Food", DayOfWeek: 5, Month: 1, IsWeekend: true})
	if err != nil {
		t.Fatalf("Predict() after restart error = %v", err)
	}
	if got != want {
		t.Errorf("reloaded prediction = %v, want %v", got, want)
	}
	if s := restarted.State(); s == nil || s.Rows != 112 {
		t.Errorf("expected reloaded state with 112 rows, got %+v", s)
	}
}

func TestPredict_RoundsToTwoDecimals(t *testing.T) {
	txns := []*domain.Transaction{
		{Date: "2024-03-04", Category: "Coffee", Type: domain.TypeExpense, Amount: 3.333},
	}
	p, _ := newTestPredictor(t, txns)
	ctx := context.Background()

	res, err := p.Train(ctx)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if res.TrainRows != 1 || res.TestRows != 0 {
		t.Errorf("single row should train on everything, got %d/%d", res.TrainRows, res.TestRows)
	}

	got, err := p.Predict(ctx, Features{Category: "Coffee", DayOfWeek: 0, Month: 3})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got != 3.33 {
		t.Errorf("Predict() = %v, want 3.33", got)
	}
}

func TestPredictor_ConcurrentTrainAndPredict(t *testing.T) {
	p, _ := newTestPredictor(t, weekdayHistory())
	ctx := context.Background()
	if _, err := p.Train(ctx); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Train(ctx); err != nil {
				errs <- err
			}
		}()
	}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := p.Predict(ctx, Features{Category: "Food", DayOfWeek: i % 7, Month: 1}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLabelEncoder(t *testing.T) {
	enc := FitLabelEncoder([]string{"Rent", "Food", "Rent", "Bills"})
	want := []string{"Bills", "Food", "Rent"}
	if len(enc.Classes) != len(want) {
		t.Fatalf("Classes = %v, want %v", enc.Classes, want)
	}
	for i, c := range want {
		if enc.Classes[i] != c {
			t.Errorf("Classes[%d] = %q, want %q", i, enc.Classes[i], c)
		}
		code, err := enc.Transform(c)
		if err != nil || code != i {
			t.Errorf("Transform(%q) = %d, %v; want %d", c, code, err, i)
		}
	}
	if _, err := enc.Transform("Gym"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestMinMaxScaler(t *testing.T) {
	s := FitMinMaxScaler([][]float64{{0, 5, 2}, {10, 5, 4}})

	got, err := s.Transform([]float64{5, 5, 8})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	want := []float64{0.5, 0, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Transform()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := s.Transform([]float64{1}); err == nil {
		t.Error("expected width mismatch error")
	}
}

func TestFeaturesFromTransaction(t *testing.T) {
	f, ok := FeaturesFromTransaction(&domain.Transaction{
		Date: "2024-03-10T18:00:00Z", Category: "Food", Type: domain.TypeExpense, IsFestival: true,
	})
	if !ok {
		t.Fatal("expected usable row")
	}
	// 2024-03-10 is a Sunday.
	if f.DayOfWeek != 6 || !f.IsWeekend || f.Month != 3 || !f.IsFestival {
		t.Errorf("unexpected features: %+v", f)
	}

	if _, ok := FeaturesFromTransaction(&domain.Transaction{Date: "2024-03-10", Type: domain.TypeIncome}); ok {
		t.Error("income rows should be skipped")
	}
}

func TestSplitTrainTest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		n, train, test int
	}{
		{1, 1, 0},
		{2, 1, 1},
		{5, 4, 1},
		{10, 8, 2},
		{11, 8, 3},
	}
	for _, tt := range tests {
		train, test := splitTrainTest(tt.n, 0.2, rng)
		if len(train) != tt.train || len(test) != tt.test {
			t.Errorf("splitTrainTest(%d) = %d/%d, want %d/%d", tt.n, len(train), len(test), tt.train, tt.test)
		}
	}
}

func TestRandomForest_FitsStepFunction(t *testing.T) {
	X := [][]float64{{0}, {0.1}, {0.2}, {0.8}, {0.9}, {1}}
	y := []float64{1, 1, 1, 9, 9, 9}

	f, err := FitRandomForest(X, y, 30, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("FitRandomForest() error = %v", err)
	}
	low, _ := f.Predict([]float64{0.05})
	high, _ := f.Predict([]float64{0.95})
	if low >= high {
		t.Errorf("expected low (%v) < high (%v)", low, high)
	}
	if _, err := f.Predict([]float64{0, 1}); err == nil {
		t.Error("expected feature count mismatch error")
	}
}
