// Package model provides the base estimator state shared by every trainable
// component in poseml, plus gob-based persistence helpers used for datasets
// and training checkpoints.
package model

// EstimatorState represents the training state of a model.
type EstimatorState int

const (
	// NotFitted means the model has not been trained yet.
	NotFitted EstimatorState = iota
	// Fitted means the model has been trained.
	Fitted
)

// BaseEstimator is embedded by every trainable type (networks, normalizers,
// PCA bases) to track whether it has been fitted.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the estimator has been trained.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted marks the estimator as trained.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset returns the estimator to its untrained state.
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}
