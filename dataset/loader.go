package dataset

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/pkg/errors"
)

// Batch is one mini-batch of training data: X is batch×numChannels,
// Y is batch×(numVertices*3).
type Batch struct {
	X *mat.Dense
	Y *mat.Dense
}

// Loader splits a store into train/validation portions and materializes
// mini-batches for the trainer. The split is made once at construction with
// a seeded shuffle; the training portion is reshuffled on every call to
// TrainBatches, the validation portion never is.
type Loader struct {
	x, y        *mat.Dense
	numChannels int
	outputWidth int
	batchSize   int
	trainIdx    []int
	valIdx      []int
	rng         *rand.Rand
}

// NewLoader builds a loader from a store. valSplit is the validation
// fraction in [0, 1); batchSize must be positive.
func NewLoader(store *Store, batchSize int, valSplit float64, seed int64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, errors.NewValueError("NewLoader", "batch size must be positive")
	}
	if valSplit < 0 || valSplit >= 1 {
		return nil, errors.NewValueError("NewLoader", "validation split must be in [0, 1)")
	}

	x, y, err := store.Matrices()
	if err != nil {
		return nil, err
	}

	n := store.NumSamples()
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	valSize := int(float64(n) * valSplit)
	l := &Loader{
		x:           x,
		y:           y,
		numChannels: store.NumChannels(),
		outputWidth: store.NumVertices() * 3,
		batchSize:   batchSize,
		trainIdx:    perm[valSize:],
		valIdx:      perm[:valSize],
		rng:         rng,
	}
	return l, nil
}

// NumTrain returns the number of training samples.
func (l *Loader) NumTrain() int { return len(l.trainIdx) }

// NumVal returns the number of validation samples.
func (l *Loader) NumVal() int { return len(l.valIdx) }

// NumChannels returns the pose vector width.
func (l *Loader) NumChannels() int { return l.numChannels }

// OutputWidth returns the flattened delta width (numVertices*3).
func (l *Loader) OutputWidth() int { return l.outputWidth }

// TrainBatches reshuffles the training portion and returns its mini-batches.
// The last batch may be smaller than batchSize.
func (l *Loader) TrainBatches() []Batch {
	l.rng.Shuffle(len(l.trainIdx), func(i, j int) {
		l.trainIdx[i], l.trainIdx[j] = l.trainIdx[j], l.trainIdx[i]
	})
	return l.batches(l.trainIdx)
}

// ValBatches returns the validation mini-batches in a fixed order.
func (l *Loader) ValBatches() []Batch {
	return l.batches(l.valIdx)
}

func (l *Loader) batches(idx []int) []Batch {
	var out []Batch
	for start := 0; start < len(idx); start += l.batchSize {
		end := start + l.batchSize
		if end > len(idx) {
			end = len(idx)
		}
		rows := idx[start:end]
		bx := mat.NewDense(len(rows), l.numChannels, nil)
		by := mat.NewDense(len(rows), l.outputWidth, nil)
		for i, r := range rows {
			bx.SetRow(i, l.x.RawRowView(r))
			by.SetRow(i, l.y.RawRowView(r))
		}
		out = append(out, Batch{X: bx, Y: by})
	}
	return out
}

// Deltas returns the training-portion delta matrix (rows are flattened
// delta fields). The compact architecture's PCA basis is fitted on this,
// never on validation rows.
func (l *Loader) Deltas() *mat.Dense {
	out := mat.NewDense(len(l.trainIdx), l.outputWidth, nil)
	for i, r := range l.trainIdx {
		out.SetRow(i, l.y.RawRowView(r))
	}
	return out
}
