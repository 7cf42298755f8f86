// Package decomposition owns the linear subspace basis that pairs with the
// compact architecture: delta fields are projected onto a PCA basis for
// training targets, and coefficient predictions are expanded back to full
// delta fields at inference time. The basis is fitted on the training split
// and serialized inside the exported model so the gate never refits.
package decomposition

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/poseml/poseml/pkg/errors"
)

// Basis is a fitted k-component linear subspace over flattened delta fields
// of dimension dim (numVertices*3).
type Basis struct {
	Mean       []float64 `json:"mean"`       // length dim
	Components []float64 `json:"components"` // dim*k, column-major by component
	Dim        int       `json:"dim"`
	K          int       `json:"k"`
}

// FitBasis computes the top-k principal components of the rows of deltas
// (n×dim). k must not exceed min(n, dim).
func FitBasis(deltas mat.Matrix, k int) (*Basis, error) {
	n, dim := deltas.Dims()
	if n == 0 || dim == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "decomposition.FitBasis")
	}
	max := n
	if dim < max {
		max = dim
	}
	if k <= 0 || k > max {
		return nil, errors.NewValueError("decomposition.FitBasis",
			"component count must be in [1, min(numSamples, dim)]")
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(deltas, nil); !ok {
		return nil, errors.Newf("decomposition.FitBasis: principal component factorization failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	mean := make([]float64, dim)
	for j := 0; j < dim; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += deltas.At(i, j)
		}
		mean[j] = sum / float64(n)
	}

	comps := make([]float64, dim*k)
	for j := 0; j < k; j++ {
		for i := 0; i < dim; i++ {
			comps[j*dim+i] = vecs.At(i, j)
		}
	}
	return &Basis{Mean: mean, Components: comps, Dim: dim, K: k}, nil
}

// Project maps a flattened delta field onto the basis, returning k
// coefficients.
func (b *Basis) Project(delta []float64) ([]float64, error) {
	if len(delta) != b.Dim {
		return nil, errors.NewShapeMismatchError("Basis.Project",
			[]int{b.Dim}, []int{len(delta)})
	}
	coeffs := make([]float64, b.K)
	for j := 0; j < b.K; j++ {
		col := b.Components[j*b.Dim : (j+1)*b.Dim]
		var dot float64
		for i, v := range delta {
			dot += (v - b.Mean[i]) * col[i]
		}
		coeffs[j] = dot
	}
	return coeffs, nil
}

// Expand reconstructs a flattened delta field from k coefficients.
func (b *Basis) Expand(coeffs []float64) ([]float64, error) {
	if len(coeffs) != b.K {
		return nil, errors.NewShapeMismatchError("Basis.Expand",
			[]int{b.K}, []int{len(coeffs)})
	}
	delta := append([]float64(nil), b.Mean...)
	for j, c := range coeffs {
		col := b.Components[j*b.Dim : (j+1)*b.Dim]
		for i := range delta {
			delta[i] += c * col[i]
		}
	}
	return delta, nil
}

// ProjectMatrix projects every row of deltas (n×dim), returning n×k
// coefficients. The trainer uses this to build compact training targets.
func (b *Basis) ProjectMatrix(deltas *mat.Dense) (*mat.Dense, error) {
	n, dim := deltas.Dims()
	if dim != b.Dim {
		return nil, errors.NewShapeMismatchError("Basis.ProjectMatrix",
			[]int{b.Dim}, []int{dim})
	}
	out := mat.NewDense(n, b.K, nil)
	for i := 0; i < n; i++ {
		coeffs, err := b.Project(deltas.RawRowView(i))
		if err != nil {
			return nil, err
		}
		out.SetRow(i, coeffs)
	}
	return out, nil
}
