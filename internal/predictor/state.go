package predictor

import (
	"sync/atomic"
	"time"
)

// ModelState is everything Predict needs. A state is never modified after
// it is published; training builds a new one.
type ModelState struct {
	Forest    *RandomForest
	Scaler    *MinMaxScaler
	Encoder   *LabelEncoder
	TrainedAt time.Time
	Rows      int
}

// StateHolder publishes the current ModelState to concurrent readers.
type StateHolder struct {
	p atomic.Pointer[ModelState]
}

// Load returns the current state or nil when untrained.
func (h *StateHolder) Load() *ModelState {
	return h.p.Load()
}

// Store replaces the current state wholesale.
func (h *StateHolder) Store(s *ModelState) {
	h.p.Store(s)
}
