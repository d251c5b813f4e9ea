package predictor

import (
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// FeatureNames lists the model inputs in column order.
var FeatureNames = []string{"category", "day_of_week", "month", "is_weekend", "is_festival"}

// Features is one prediction request.
type Features struct {
	Category   string
	DayOfWeek  int // Monday = 0
	Month      int // 1-12
	IsWeekend  bool
	IsFestival bool
}

// FeaturesAt derives the calendar features for t.
func FeaturesAt(category string, t time.Time, festival bool) Features {
	dow := (int(t.Weekday()) + 6) % 7
	return Features{
		Category:   category,
		DayOfWeek:  dow,
		Month:      int(t.Month()),
		IsWeekend:  dow >= 5,
		IsFestival: festival,
	}
}

// FeaturesFromTransaction builds a training row from an expense with a
// parseable date. ok is false for anything else.
func FeaturesFromTransaction(t *domain.Transaction) (Features, bool) {
	if t.EffectiveType() != domain.TypeExpense {
		return Features{}, false
	}
	ts, ok := domain.ParseISOTime(t.Date)
	if !ok {
		return Features{}, false
	}
	return FeaturesAt(t.Category, ts, t.IsFestival), true
}

// vector encodes f with enc. It fails with ErrUnknownCategory for unseen categories.
func (f Features) vector(enc *LabelEncoder) ([]float64, error) {
	code, err := enc.Transform(f.Category)
	if err != nil {
		return nil, err
	}
	return []float64{
		float64(code),
		float64(f.DayOfWeek),
		float64(f.Month),
		boolToFloat(f.IsWeekend),
		boolToFloat(f.IsFestival),
	}, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
