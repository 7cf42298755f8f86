// Package dataset implements the sample store for pose-to-correction
// training data: in-memory accumulation of (pose vector, vertex delta)
// samples and persistence to a compressed columnar container.
package dataset

import (
	"os"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/core/model"
	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
)

// SampleID identifies a captured sample within a store.
type SampleID = uuid.UUID

// Sample is one (pose, delta) training pair. Immutable once captured.
type Sample struct {
	ID         SampleID
	Pose       []float64 // length numChannels, normalized to [-1, 1]
	Delta      []float64 // length numVertices*3, flat xyz per vertex
	CapturedAt time.Time
}

// Store accumulates samples append-only. The first sample fixes the
// channel and vertex dimensions; every later sample must match them.
type Store struct {
	channelNames []string
	numChannels  int
	numVertices  int
	samples      []Sample
}

// NewStore creates an empty store. channelNames may be nil when the channel
// count should be fixed by the first captured sample instead.
func NewStore(channelNames []string) *Store {
	s := &Store{
		channelNames: append([]string(nil), channelNames...),
		numChannels:  len(channelNames),
	}
	return s
}

// AddSample appends a sample and returns its ID. The first sample fixes
// numChannels and numVertices; later samples with different lengths fail
// with a ShapeMismatchError.
func (s *Store) AddSample(pose, delta []float64) (SampleID, error) {
	if len(pose) == 0 || len(delta) == 0 {
		return uuid.Nil, errors.Wrap(errors.ErrEmptyData, "Store.AddSample")
	}
	if len(delta)%3 != 0 {
		return uuid.Nil, errors.NewShapeMismatchError("Store.AddSample",
			[]int{len(delta) / 3, 3}, []int{len(delta)})
	}

	if s.numChannels == 0 && len(s.samples) == 0 {
		s.numChannels = len(pose)
	}
	if s.numVertices == 0 && len(s.samples) == 0 {
		s.numVertices = len(delta) / 3
	}

	if len(pose) != s.numChannels {
		return uuid.Nil, errors.NewShapeMismatchError("Store.AddSample",
			[]int{s.numChannels}, []int{len(pose)})
	}
	if len(delta) != s.numVertices*3 {
		return uuid.Nil, errors.NewShapeMismatchError("Store.AddSample",
			[]int{s.numVertices, 3}, []int{len(delta) / 3, 3})
	}

	sample := Sample{
		ID:         uuid.New(),
		Pose:       append([]float64(nil), pose...),
		Delta:      append([]float64(nil), delta...),
		CapturedAt: time.Now(),
	}
	s.samples = append(s.samples, sample)
	return sample.ID, nil
}

// NumSamples returns the number of captured samples.
func (s *Store) NumSamples() int { return len(s.samples) }

// NumChannels returns the pose vector length, 0 if not yet fixed.
func (s *Store) NumChannels() int { return s.numChannels }

// NumVertices returns the per-sample vertex count, 0 if not yet fixed.
func (s *Store) NumVertices() int { return s.numVertices }

// ChannelNames returns the tracked channel names, possibly empty.
func (s *Store) ChannelNames() []string {
	return append([]string(nil), s.channelNames...)
}

// Sample returns the i-th sample by capture order.
func (s *Store) Sample(i int) Sample { return s.samples[i] }

// Clear discards all in-memory samples. Persisted datasets are snapshots
// and are unaffected. Dimensions fixed by the first sample are kept only
// when channel names were supplied up front.
func (s *Store) Clear() {
	s.samples = nil
	if len(s.channelNames) == 0 {
		s.numChannels = 0
	}
	s.numVertices = 0
}

// Matrices returns the full dataset as dense matrices: X is
// numSamples×numChannels, Y is numSamples×(numVertices*3).
func (s *Store) Matrices() (X, Y *mat.Dense, err error) {
	n := len(s.samples)
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "Store.Matrices")
	}
	X = mat.NewDense(n, s.numChannels, nil)
	Y = mat.NewDense(n, s.numVertices*3, nil)
	for i, sample := range s.samples {
		X.SetRow(i, sample.Pose)
		Y.SetRow(i, sample.Delta)
	}
	return X, Y, nil
}

// datasetFile is the on-disk columnar layout, gob-encoded through gzip.
type datasetFile struct {
	Magic        string
	Version      int
	NumSamples   int
	NumChannels  int
	NumVertices  int
	ChannelNames []string
	SampleIDs    []string
	PoseVectors  []float64 // NumSamples * NumChannels
	VertexDeltas []float64 // NumSamples * NumVertices * 3
	CapturedAt   []time.Time
}

const (
	datasetMagic   = "poseml-dataset"
	datasetVersion = 1
)

// Save persists the full dataset to path as a compressed columnar container.
// Saving is a snapshot: the in-memory store is unaffected.
func (s *Store) Save(path string) error {
	if len(s.samples) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "Store.Save")
	}

	n := len(s.samples)
	f := datasetFile{
		Magic:        datasetMagic,
		Version:      datasetVersion,
		NumSamples:   n,
		NumChannels:  s.numChannels,
		NumVertices:  s.numVertices,
		ChannelNames: append([]string(nil), s.channelNames...),
		SampleIDs:    make([]string, 0, n),
		PoseVectors:  make([]float64, 0, n*s.numChannels),
		VertexDeltas: make([]float64, 0, n*s.numVertices*3),
		CapturedAt:   make([]time.Time, 0, n),
	}
	for _, sample := range s.samples {
		f.SampleIDs = append(f.SampleIDs, sample.ID.String())
		f.PoseVectors = append(f.PoseVectors, sample.Pose...)
		f.VertexDeltas = append(f.VertexDeltas, sample.Delta...)
		f.CapturedAt = append(f.CapturedAt, sample.CapturedAt)
	}

	if err := model.SaveGobCompressed(&f, path); err != nil {
		return errors.Wrapf(err, "Store.Save %s", path)
	}

	logger := log.GetLogger("dataset")
	logger.Info().
		Str(log.PathKey, path).
		Int(log.SamplesKey, n).
		Int(log.ChannelsKey, s.numChannels).
		Int(log.VerticesKey, s.numVertices).
		Msg("dataset saved")
	return nil
}

// Load restores a dataset previously written by Save. A missing file yields
// a DatasetNotFoundError; a malformed header or mutually inconsistent array
// shapes yield a FormatError.
func Load(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NewDatasetNotFoundError(path)
	}

	var f datasetFile
	if err := model.LoadGobCompressed(&f, path); err != nil {
		return nil, errors.NewFormatError(path, err.Error())
	}

	if f.Magic != datasetMagic {
		return nil, errors.NewFormatError(path, "not a poseml dataset")
	}
	if f.Version != datasetVersion {
		return nil, errors.NewFormatError(path, "unsupported dataset version")
	}
	if f.NumSamples <= 0 || f.NumChannels <= 0 || f.NumVertices <= 0 {
		return nil, errors.NewFormatError(path, "non-positive dimensions in header")
	}
	if len(f.PoseVectors) != f.NumSamples*f.NumChannels {
		return nil, errors.NewFormatError(path, "pose array size disagrees with header")
	}
	if len(f.VertexDeltas) != f.NumSamples*f.NumVertices*3 {
		return nil, errors.NewFormatError(path, "delta array size disagrees with header")
	}
	if len(f.ChannelNames) != 0 && len(f.ChannelNames) != f.NumChannels {
		return nil, errors.NewFormatError(path, "channel name count disagrees with header")
	}
	if len(f.SampleIDs) != f.NumSamples || len(f.CapturedAt) != f.NumSamples {
		return nil, errors.NewFormatError(path, "per-sample metadata disagrees with header")
	}

	s := &Store{
		channelNames: f.ChannelNames,
		numChannels:  f.NumChannels,
		numVertices:  f.NumVertices,
		samples:      make([]Sample, 0, f.NumSamples),
	}
	for i := 0; i < f.NumSamples; i++ {
		id, err := uuid.Parse(f.SampleIDs[i])
		if err != nil {
			return nil, errors.NewFormatError(path, "invalid sample id")
		}
		poseOff := i * f.NumChannels
		deltaOff := i * f.NumVertices * 3
		s.samples = append(s.samples, Sample{
			ID:         id,
			Pose:       append([]float64(nil), f.PoseVectors[poseOff:poseOff+f.NumChannels]...),
			Delta:      append([]float64(nil), f.VertexDeltas[deltaOff:deltaOff+f.NumVertices*3]...),
			CapturedAt: f.CapturedAt[i],
		})
	}
	return s, nil
}
