package predictor

import (
	"fmt"
	"sort"
)

// LabelEncoder maps category strings to dense integer codes. Classes are
// kept sorted, so the code of a category is its index in Classes.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder learns the distinct values of labels.
func FitLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Transform returns the code for label.
func (e *LabelEncoder) Transform(label string) (int, error) {
	i := sort.SearchStrings(e.Classes, label)
	if i < len(e.Classes) && e.Classes[i] == label {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, label)
}
