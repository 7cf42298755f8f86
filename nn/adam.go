package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/pkg/errors"
)

// Adam is the adaptive first/second-moment optimizer used by the trainer.
// Moment buffers are allocated lazily on the first step and serialize into
// checkpoints so an aborted run can resume without losing optimizer state.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	step int
	m    [][]float64
	v    [][]float64
}

// NewAdam creates an Adam optimizer with the standard moment decay rates.
func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

// LearningRate returns the current learning rate.
func (a *Adam) LearningRate() float64 { return a.lr }

// SetLearningRate replaces the learning rate; the plateau scheduler calls
// this when validation loss stalls.
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

// Step applies one update to params given the aligned grads.
func (a *Adam) Step(params, grads []*mat.Dense) error {
	if len(params) != len(grads) {
		return errors.NewShapeMismatchError("Adam.Step",
			[]int{len(params)}, []int{len(grads)})
	}
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			r, c := p.Dims()
			a.m[i] = make([]float64, r*c)
			a.v[i] = make([]float64, r*c)
		}
	}

	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, p := range params {
		pd := p.RawMatrix().Data
		gd := grads[i].RawMatrix().Data
		if len(pd) != len(a.m[i]) || len(gd) != len(pd) {
			return errors.NewShapeMismatchError("Adam.Step",
				[]int{len(a.m[i])}, []int{len(pd)})
		}
		m, v := a.m[i], a.v[i]
		for j, g := range gd {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			pd[j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// AdamState is the serializable optimizer state stored in checkpoints.
type AdamState struct {
	Step         int
	LearningRate float64
	M            [][]float64
	V            [][]float64
}

// State copies the optimizer state out.
func (a *Adam) State() AdamState {
	st := AdamState{Step: a.step, LearningRate: a.lr}
	for i := range a.m {
		st.M = append(st.M, append([]float64(nil), a.m[i]...))
		st.V = append(st.V, append([]float64(nil), a.v[i]...))
	}
	return st
}

// SetState restores optimizer state from a checkpoint.
func (a *Adam) SetState(st AdamState) {
	a.step = st.Step
	a.lr = st.LearningRate
	a.m = nil
	a.v = nil
	for i := range st.M {
		a.m = append(a.m, append([]float64(nil), st.M[i]...))
		a.v = append(a.v, append([]float64(nil), st.V[i]...))
	}
}
