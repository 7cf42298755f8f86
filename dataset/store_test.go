package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poseml/poseml/pkg/errors"
)

func TestStoreAddSample(t *testing.T) {
	store := NewStore([]string{"elbow_rx", "elbow_ry"})

	id, err := store.AddSample([]float64{0.5, -0.25}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, 1, store.NumSamples())
	assert.Equal(t, 2, store.NumChannels())
	assert.Equal(t, 2, store.NumVertices())

	// Dimensions are fixed by the first sample.
	_, err = store.AddSample([]float64{0.5, -0.25, 0.0}, []float64{1, 2, 3, 4, 5, 6})
	var shapeErr *errors.ShapeMismatchError
	require.Error(t, err)
	assert.True(t, errors.As(err, &shapeErr))

	_, err = store.AddSample([]float64{0.5, -0.25}, []float64{1, 2, 3})
	require.Error(t, err)

	// Delta must be a whole number of xyz triples.
	_, err = store.AddSample([]float64{0.5, -0.25}, []float64{1, 2, 3, 4})
	require.Error(t, err)

	// Empty input is rejected outright.
	_, err = store.AddSample(nil, []float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestStoreCopiesInput(t *testing.T) {
	store := NewStore(nil)
	pose := []float64{0.1}
	delta := []float64{1, 2, 3}

	_, err := store.AddSample(pose, delta)
	require.NoError(t, err)

	pose[0] = 99
	delta[0] = 99
	got := store.Sample(0)
	assert.Equal(t, 0.1, got.Pose[0])
	assert.Equal(t, 1.0, got.Delta[0])
}

func TestStoreMatrices(t *testing.T) {
	store := NewStore(nil)
	_, err := store.AddSample([]float64{1, 2}, []float64{1, 0, 0, 0, 1, 0})
	require.NoError(t, err)
	_, err = store.AddSample([]float64{3, 4}, []float64{0, 0, 1, 1, 1, 1})
	require.NoError(t, err)

	x, y, err := store.Matrices()
	require.NoError(t, err)

	r, c := x.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	r, c = y.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 6, c)
	assert.Equal(t, 3.0, x.At(1, 0))
	assert.Equal(t, 1.0, y.At(1, 2))

	empty := NewStore(nil)
	_, _, err = empty.Matrices()
	require.Error(t, err)
}

func TestStoreClear(t *testing.T) {
	named := NewStore([]string{"a", "b"})
	_, err := named.AddSample([]float64{1, 2}, []float64{1, 2, 3})
	require.NoError(t, err)

	named.Clear()
	assert.Equal(t, 0, named.NumSamples())
	assert.Equal(t, 2, named.NumChannels(), "named channels keep the pose width")
	assert.Equal(t, 0, named.NumVertices())

	anon := NewStore(nil)
	_, err = anon.AddSample([]float64{1}, []float64{1, 2, 3})
	require.NoError(t, err)
	anon.Clear()
	assert.Equal(t, 0, anon.NumChannels())
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewStore([]string{"shoulder_rx", "shoulder_rz", "elbow_rx"})
	for i := 0; i < 5; i++ {
		pose := []float64{float64(i) * 0.1, float64(i) * -0.2, float64(i)}
		delta := make([]float64, 9)
		for j := range delta {
			delta[j] = float64(i*10 + j)
		}
		_, err := store.AddSample(pose, delta)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "captures.pmds")
	require.NoError(t, store.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, store.NumSamples(), loaded.NumSamples())
	assert.Equal(t, store.NumChannels(), loaded.NumChannels())
	assert.Equal(t, store.NumVertices(), loaded.NumVertices())
	assert.Equal(t, store.ChannelNames(), loaded.ChannelNames())

	for i := 0; i < store.NumSamples(); i++ {
		want, got := store.Sample(i), loaded.Sample(i)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Pose, got.Pose)
		assert.Equal(t, want.Delta, got.Delta)
		assert.True(t, want.CapturedAt.Equal(got.CapturedAt))
	}
}

func TestLoadMissingDataset(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.pmds"))
	require.Error(t, err)

	var notFound *errors.DatasetNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pmds")
	require.NoError(t, os.WriteFile(path, []byte("not a dataset"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
