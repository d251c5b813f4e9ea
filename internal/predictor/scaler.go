package predictor

import "fmt"

// MinMaxScaler rescales each feature to [0, 1] using the training range.
// A feature with zero range is only shifted.
type MinMaxScaler struct {
	DataMin []float64 `json:"data_min"`
	DataMax []float64 `json:"data_max"`
}

// FitMinMaxScaler records per-column minimum and maximum. X must be non-empty
// and rectangular.
func FitMinMaxScaler(X [][]float64) *MinMaxScaler {
	n := len(X[0])
	s := &MinMaxScaler{
		DataMin: append([]float64(nil), X[0]...),
		DataMax: append([]float64(nil), X[0]...),
	}
	for _, row := range X[1:] {
		for j := 0; j < n; j++ {
			if row[j] < s.DataMin[j] {
				s.DataMin[j] = row[j]
			}
			if row[j] > s.DataMax[j] {
				s.DataMax[j] = row[j]
			}
		}
	}
	return s
}

// Transform scales one row into a new slice.
func (s *MinMaxScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.DataMin) {
		return nil, fmt.Errorf("scaler fitted on %d features, got %d", len(s.DataMin), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		scale := s.DataMax[j] - s.DataMin[j]
		if scale == 0 {
			scale = 1
		}
		out[j] = (v - s.DataMin[j]) / scale
	}
	return out, nil
}

// TransformAll scales every row of X.
func (s *MinMaxScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}
