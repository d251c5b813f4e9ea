package predictor

import "errors"

var (
	// ErrNoData is returned by Train when no transaction can be used as a training row.
	ErrNoData = errors.New("no data in database")

	// ErrArtifactNotFound is returned by Predict when no model is resident and
	// nothing has been persisted yet.
	ErrArtifactNotFound = errors.New("model artifacts not found")

	// ErrUnknownCategory is returned when a category was not seen during training.
	ErrUnknownCategory = errors.New("unknown category")
)
