package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// NumericalInstabilityError indicates NaN or Inf values produced during an
// optimization step. Training treats it as fatal: silent corruption of the
// weights is worse than a loud abort.
type NumericalInstabilityError struct {
	Operation string    // e.g. "gradient_update", "loss"
	Values    []float64 // offending values, truncated for reporting
	Epoch     int
	Batch     int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("poseml: numerical instability in %s at epoch %d batch %d. Values: [%s]",
		e.Operation, e.Epoch, e.Batch, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, epoch, batch int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Epoch:     epoch,
		Batch:     batch,
	}
	return errors.WithStack(err)
}

// CheckScalar checks a single scalar value for NaN/Inf.
func CheckScalar(operation string, value float64, epoch, batch int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, epoch, batch)
	}
	return nil
}

// CheckValues checks a slice of values for NaN/Inf.
func CheckValues(operation string, values []float64, epoch, batch int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, epoch, batch)
		}
	}
	return nil
}
