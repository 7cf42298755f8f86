package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poseml/poseml/pkg/errors"
)

// fakeRig is an in-memory Rig whose corrective mesh tracks the base mesh
// with a displacement proportional to the elbow channel.
type fakeRig struct {
	channels map[string]float64
	meshes   map[string][]float64

	refreshed   int
	failRefresh int // fail the nth refresh, 0 disables
	setCalls    []float64
}

func newFakeRig() *fakeRig {
	return &fakeRig{
		channels: map[string]float64{"elbow_rx": 0, "wrist_rz": 0},
		meshes: map[string][]float64{
			"base":       {0, 0, 0, 1, 0, 0},
			"corrective": {0, 0, 0, 1, 0, 0},
		},
	}
}

func (r *fakeRig) Channel(name string) (float64, error) {
	v, ok := r.channels[name]
	if !ok {
		return 0, errors.Newf("no channel %q", name)
	}
	return v, nil
}

func (r *fakeRig) SetChannel(name string, value float64) error {
	if _, ok := r.channels[name]; !ok {
		return errors.Newf("no channel %q", name)
	}
	r.channels[name] = value
	r.setCalls = append(r.setCalls, value)
	return nil
}

func (r *fakeRig) Refresh() error {
	r.refreshed++
	if r.failRefresh > 0 && r.refreshed == r.failRefresh {
		return errors.Newf("scene evaluation failed")
	}
	// The corrective sculpt pushes the second vertex along y by elbow/100.
	push := r.channels["elbow_rx"] / 100
	r.meshes["corrective"] = []float64{0, 0, 0, 1, push, 0}
	return nil
}

func (r *fakeRig) VertexPositions(mesh string) ([]float64, error) {
	m, ok := r.meshes[mesh]
	if !ok {
		return nil, errors.Newf("no mesh %q", mesh)
	}
	return append([]float64(nil), m...), nil
}

func (r *fakeRig) MeshExists(mesh string) bool {
	_, ok := r.meshes[mesh]
	return ok
}

func TestNewCollectorValidation(t *testing.T) {
	rig := newFakeRig()

	_, err := NewCollector(nil, "base", []string{"elbow_rx"})
	require.Error(t, err)
	_, err = NewCollector(rig, "", []string{"elbow_rx"})
	require.Error(t, err)
	_, err = NewCollector(rig, "base", nil)
	require.Error(t, err)

	c, err := NewCollector(rig, "base", []string{"elbow_rx", "wrist_rz"})
	require.NoError(t, err)
	assert.NotZero(t, c.SessionID())
}

func TestCaptureSampleWithoutCorrective(t *testing.T) {
	rig := newFakeRig()
	c, err := NewCollector(rig, "base", []string{"elbow_rx", "wrist_rz"})
	require.NoError(t, err)

	rig.channels["elbow_rx"] = 90

	_, err = c.CaptureSample()
	require.NoError(t, err)

	got := c.Store().Sample(0)
	assert.InDelta(t, 0.5, got.Pose[0], 1e-12, "channel degrees are normalized")
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, got.Delta, "no corrective mesh means zero delta")
}

func TestCaptureSampleDelta(t *testing.T) {
	rig := newFakeRig()
	c, err := NewCollector(rig, "base", []string{"elbow_rx", "wrist_rz"})
	require.NoError(t, err)
	c.SetCorrectiveMesh("corrective")

	rig.channels["elbow_rx"] = 50
	require.NoError(t, rig.Refresh())

	_, err = c.CaptureSample()
	require.NoError(t, err)

	got := c.Store().Sample(0)
	assert.InDelta(t, 0.5, got.Delta[4], 1e-12, "delta is corrective minus base")
	assert.Equal(t, 0.0, got.Delta[0])
}

func TestCaptureRange(t *testing.T) {
	rig := newFakeRig()
	rig.channels["elbow_rx"] = 17 // pre-existing pose to restore
	c, err := NewCollector(rig, "base", []string{"elbow_rx", "wrist_rz"})
	require.NoError(t, err)
	c.SetCorrectiveMesh("corrective")

	require.NoError(t, c.CaptureRange("elbow_rx", 0, 120, 5))

	assert.Equal(t, 5, c.Store().NumSamples())

	// Inclusive evenly spaced sweep plus the final restore write.
	assert.Equal(t, []float64{0, 30, 60, 90, 120, 17}, rig.setCalls)
	assert.Equal(t, 17.0, rig.channels["elbow_rx"], "channel restored after capture")

	// Captured poses are the normalized sweep values.
	for i, deg := range []float64{0, 30, 60, 90, 120} {
		assert.InDelta(t, deg/180, c.Store().Sample(i).Pose[0], 1e-12)
	}
}

func TestCaptureRangeSingleStep(t *testing.T) {
	rig := newFakeRig()
	c, err := NewCollector(rig, "base", []string{"elbow_rx", "wrist_rz"})
	require.NoError(t, err)

	require.NoError(t, c.CaptureRange("elbow_rx", 45, 90, 1))
	require.Equal(t, 1, c.Store().NumSamples())
	assert.InDelta(t, 0.25, c.Store().Sample(0).Pose[0], 1e-12, "single step captures start only")
}

func TestCaptureRangePartialFailure(t *testing.T) {
	rig := newFakeRig()
	rig.channels["elbow_rx"] = 5
	rig.failRefresh = 3
	c, err := NewCollector(rig, "base", []string{"elbow_rx", "wrist_rz"})
	require.NoError(t, err)

	err = c.CaptureRange("elbow_rx", 0, 120, 5)
	require.Error(t, err)

	assert.Equal(t, 2, c.Store().NumSamples(), "samples before the failure are retained")
	assert.Equal(t, 5.0, rig.channels["elbow_rx"], "channel restored even on failure")
}

func TestCaptureRangeValidation(t *testing.T) {
	rig := newFakeRig()
	c, err := NewCollector(rig, "base", []string{"elbow_rx"})
	require.NoError(t, err)

	require.Error(t, c.CaptureRange("elbow_rx", 0, 10, 0))
	require.Error(t, c.CaptureRange("knee_rx", 0, 10, 3))
}
