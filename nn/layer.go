// Package nn implements the interchangeable feed-forward architectures that
// map a fixed-length pose vector to per-vertex displacement deltas (or to a
// compressed coefficient vector). Forward and backward passes are explicit
// gonum matrix operations; the inference path allocates per call and caches
// nothing, so a frozen network can be evaluated concurrently.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// layer is one differentiable step. Backward must be called after a
// Forward with training=true; it consumes the cached activations.
type layer interface {
	Forward(x *mat.Dense, training bool) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*mat.Dense
	Grads() []*mat.Dense
}

// dense is a fully-connected layer: y = x*W + b, with W in×out and b 1×out.
type dense struct {
	w *mat.Dense // in × out
	b *mat.Dense // 1 × out

	gw *mat.Dense
	gb *mat.Dense

	x *mat.Dense // cached input, training only
}

// newDense creates a dense layer with Xavier-normal weights
// (std = sqrt(2/(fanIn+fanOut))) and zero biases.
func newDense(in, out int, rng *rand.Rand) *dense {
	std := math.Sqrt(2.0 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return &dense{
		w:  mat.NewDense(in, out, data),
		b:  mat.NewDense(1, out, nil),
		gw: mat.NewDense(in, out, nil),
		gb: mat.NewDense(1, out, nil),
	}
}

func (d *dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	if training {
		d.x = x
	}
	rows, _ := x.Dims()
	_, out := d.w.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, d.w)
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+d.b.At(0, j))
		}
	}
	return y
}

func (d *dense) Backward(grad *mat.Dense) *mat.Dense {
	// dW = xT * grad, db = column sums of grad, dX = grad * WT
	d.gw.Mul(d.x.T(), grad)
	rows, out := grad.Dims()
	for j := 0; j < out; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += grad.At(i, j)
		}
		d.gb.Set(0, j, sum)
	}
	in, _ := d.w.Dims()
	dx := mat.NewDense(rows, in, nil)
	dx.Mul(grad, d.w.T())
	return dx
}

func (d *dense) Params() []*mat.Dense { return []*mat.Dense{d.w, d.b} }
func (d *dense) Grads() []*mat.Dense  { return []*mat.Dense{d.gw, d.gb} }

// relu applies max(0, x) elementwise.
type relu struct {
	mask *mat.Dense // training only
}

func (r *relu) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	var mask *mat.Dense
	if training {
		mask = mat.NewDense(rows, cols, nil)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); v > 0 {
				y.Set(i, j, v)
				if mask != nil {
					mask.Set(i, j, 1)
				}
			}
		}
	}
	// The inference pass must not touch layer state; a frozen network is
	// shared across concurrent Predict calls.
	if training {
		r.mask = mask
	}
	return y
}

func (r *relu) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.MulElem(grad, r.mask)
	return dx
}

func (r *relu) Params() []*mat.Dense { return nil }
func (r *relu) Grads() []*mat.Dense  { return nil }

// dropout randomly zeroes units during training using inverted scaling, so
// inference is a pure identity.
type dropout struct {
	rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

func (d *dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	// Identity at inference, with no state write: a frozen network is
	// shared across concurrent Predict calls.
	if !training || d.rate == 0 {
		return x
	}
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	mask := mat.NewDense(rows, cols, nil)
	scale := 1.0 / (1.0 - d.rate)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if d.rng.Float64() >= d.rate {
				mask.Set(i, j, scale)
				y.Set(i, j, x.At(i, j)*scale)
			}
		}
	}
	d.mask = mask
	return y
}

func (d *dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	rows, cols := grad.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.MulElem(grad, d.mask)
	return dx
}

func (d *dropout) Params() []*mat.Dense { return nil }
func (d *dropout) Grads() []*mat.Dense  { return nil }

// residualBlock computes y = x + f(x), where f is two dense+relu steps at a
// fixed width. The additive identity path keeps gradient signal reaching
// early blocks in deep stacks.
type residualBlock struct {
	l1, l2 *dense
	r1, r2 *relu
}

func newResidualBlock(width int, rng *rand.Rand) *residualBlock {
	return &residualBlock{
		l1: newDense(width, width, rng),
		l2: newDense(width, width, rng),
		r1: &relu{},
		r2: &relu{},
	}
}

func (b *residualBlock) Forward(x *mat.Dense, training bool) *mat.Dense {
	h := b.r1.Forward(b.l1.Forward(x, training), training)
	h = b.r2.Forward(b.l2.Forward(h, training), training)
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	y.Add(x, h)
	return y
}

func (b *residualBlock) Backward(grad *mat.Dense) *mat.Dense {
	g := b.r2.Backward(grad)
	g = b.l2.Backward(g)
	g = b.r1.Backward(g)
	g = b.l1.Backward(g)
	rows, cols := grad.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.Add(grad, g)
	return dx
}

func (b *residualBlock) Params() []*mat.Dense {
	return append(b.l1.Params(), b.l2.Params()...)
}

func (b *residualBlock) Grads() []*mat.Dense {
	return append(b.l1.Grads(), b.l2.Grads()...)
}
