// Package preprocessing provides pose-channel normalization for poseml.
// Rotational channels are captured in degrees and stored in model space:
// degrees -> radians -> divided by pi, giving [-1, 1] for [-180, 180].
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/pkg/errors"
)

// AngleNormalizer converts rotational pose channels between host space
// (degrees) and model space (radians/pi). It is stateless; the type exists
// so the normalization used at capture time travels with the pipeline and
// is the same one the inference gate applies per frame.
type AngleNormalizer struct{}

// NewAngleNormalizer creates an AngleNormalizer.
func NewAngleNormalizer() *AngleNormalizer {
	return &AngleNormalizer{}
}

// Normalize converts a single angle in degrees to model space.
// deg -> radians -> /pi collapses to deg/180.
func (a *AngleNormalizer) Normalize(deg float64) float64 {
	return deg * (math.Pi / 180) / math.Pi
}

// Denormalize converts a model-space value back to degrees.
func (a *AngleNormalizer) Denormalize(v float64) float64 {
	return v * math.Pi * (180 / math.Pi)
}

// NormalizeSlice converts a pose vector of degrees to model space in place
// and returns it for chaining.
func (a *AngleNormalizer) NormalizeSlice(deg []float64) []float64 {
	for i, v := range deg {
		deg[i] = a.Normalize(v)
	}
	return deg
}

// NormalizedCopy returns a model-space copy, leaving the input untouched.
func (a *AngleNormalizer) NormalizedCopy(deg []float64) []float64 {
	out := make([]float64, len(deg))
	for i, v := range deg {
		out[i] = a.Normalize(v)
	}
	return out
}

// Transform normalizes every element of a matrix of degree-valued channels.
func (a *AngleNormalizer) Transform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "AngleNormalizer.Transform")
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.Normalize(x.At(i, j)))
		}
	}
	return out, nil
}

// InverseTransform converts model-space values back to degrees.
func (a *AngleNormalizer) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "AngleNormalizer.InverseTransform")
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.Denormalize(x.At(i, j)))
		}
	}
	return out, nil
}
