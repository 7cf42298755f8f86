// Package metrics provides regression metrics over gonum matrices. The
// trainer's loss is MSE over predicted and ground-truth delta fields; the
// remaining metrics are reported for run comparison.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/pkg/errors"
)

// MSE computes the mean squared error over all elements of two equally
// shaped matrices. For delta fields this is the per-component MSE the
// trainer optimizes.
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	r, c := yTrue.Dims()
	rp, cp := yPred.Dims()
	if r == 0 || c == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "metrics.MSE")
	}
	if r != rp || c != cp {
		return 0, errors.NewShapeMismatchError("metrics.MSE", []int{r, c}, []int{rp, cp})
	}

	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			diff := yTrue.At(i, j) - yPred.At(i, j)
			sum += diff * diff
		}
	}
	return sum / float64(r*c), nil
}

// RMSE computes the root mean squared error.
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE computes the mean absolute error over all elements.
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	r, c := yTrue.Dims()
	rp, cp := yPred.Dims()
	if r == 0 || c == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "metrics.MAE")
	}
	if r != rp || c != cp {
		return 0, errors.NewShapeMismatchError("metrics.MAE", []int{r, c}, []int{rp, cp})
	}

	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum += math.Abs(yTrue.At(i, j) - yPred.At(i, j))
		}
	}
	return sum / float64(r*c), nil
}

// R2 computes the coefficient of determination over all elements.
// Returns an error when the true values have zero variance.
func R2(yTrue, yPred mat.Matrix) (float64, error) {
	r, c := yTrue.Dims()
	rp, cp := yPred.Dims()
	if r == 0 || c == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "metrics.R2")
	}
	if r != rp || c != cp {
		return 0, errors.NewShapeMismatchError("metrics.R2", []int{r, c}, []int{rp, cp})
	}

	var mean float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			mean += yTrue.At(i, j)
		}
	}
	mean /= float64(r * c)

	var tss, rss float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			t := yTrue.At(i, j)
			tss += (t - mean) * (t - mean)
			d := t - yPred.At(i, j)
			rss += d * d
		}
	}
	if tss == 0 {
		return 0, errors.Newf("metrics.R2: total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}
