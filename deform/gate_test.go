package deform

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poseml/poseml/export"
	"github.com/poseml/poseml/nn"
)

func exportedModelDir(t *testing.T) string {
	t.Helper()
	cfg := nn.DefaultConfig(nn.Direct, 2, 4)
	cfg.Seed = 3
	net, err := nn.New(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = export.Export(net, nil, 0.01, dir)
	require.NoError(t, err)
	return dir
}

func TestGateUnloadedIsNoOp(t *testing.T) {
	gate := NewGate()
	assert.False(t, gate.Loaded())
	assert.Nil(t, gate.Metadata())

	positions := []float64{1, 2, 3}
	gate.Apply([]float64{0, 0}, positions, 1, true)
	assert.Equal(t, []float64{1, 2, 3}, positions)
}

func TestGateDisabledIsNoOp(t *testing.T) {
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))

	positions := make([]float64, 12)
	gate.Apply([]float64{10, 20}, positions, 1, false)
	assert.Equal(t, make([]float64, 12), positions)
}

func TestGateApplyDisplaces(t *testing.T) {
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))
	require.True(t, gate.Loaded())
	require.NotNil(t, gate.Metadata())

	positions := make([]float64, 12)
	gate.Apply([]float64{30, -45}, positions, 1, true)

	moved := false
	for _, p := range positions {
		if p != 0 {
			moved = true
		}
	}
	assert.True(t, moved, "a loaded model at nonzero pose should displace vertices")
}

func TestGateWeightScaling(t *testing.T) {
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))

	pose := []float64{30, -45}
	half := make([]float64, 12)
	full := make([]float64, 12)
	gate.Apply(pose, half, 0.5, true)
	gate.Apply(pose, full, 1.0, true)

	for i := range half {
		assert.InDelta(t, full[i]*0.5, half[i], 1e-12)
	}

	// Weight zero is a no-op; weights above the cap clamp to it.
	zero := make([]float64, 12)
	gate.Apply(pose, zero, 0, true)
	assert.Equal(t, make([]float64, 12), zero)

	capped := make([]float64, 12)
	over := make([]float64, 12)
	gate.Apply(pose, capped, MaxWeight, true)
	gate.Apply(pose, over, MaxWeight+5, true)
	assert.Equal(t, capped, over)
}

func TestGateFaultIsSilentNoOp(t *testing.T) {
	// A pose that disagrees with the model's input width is an evaluation
	// fault: logged, swallowed, positions untouched.
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))

	positions := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	gate.Apply([]float64{1, 2, 3}, positions, 1, true)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, positions)

	short := []float64{5, 5, 5}
	gate.Apply([]float64{1, 2}, short, 1, true)
	assert.Equal(t, []float64{5, 5, 5}, short)
}

func TestGateLoadFailureKeepsCurrentModel(t *testing.T) {
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))

	err := gate.Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, gate.Loaded(), "failed load must not drop the working model")
}

func TestGateUnload(t *testing.T) {
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))
	gate.Unload()
	assert.False(t, gate.Loaded())

	positions := make([]float64, 12)
	gate.Apply([]float64{30, -45}, positions, 1, true)
	assert.Equal(t, make([]float64, 12), positions)
}

func TestGateConcurrentApply(t *testing.T) {
	gate := NewGate()
	require.NoError(t, gate.Load(exportedModelDir(t)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			positions := make([]float64, 12)
			for j := 0; j < 50; j++ {
				gate.Apply([]float64{15, 25}, positions, 1, true)
			}
		}()
	}
	wg.Wait()
}
