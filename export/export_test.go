package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poseml/poseml/decomposition"
	"github.com/poseml/poseml/nn"
)

func smallNet(t *testing.T, kind nn.Kind) *nn.Network {
	t.Helper()
	cfg := nn.DefaultConfig(kind, 3, 8)
	cfg.Seed = 2
	if kind == nn.Compact {
		cfg.Components = 4
	}
	net, err := nn.New(cfg)
	require.NoError(t, err)
	return net
}

func TestExportWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	net := smallNet(t, nn.Direct)

	res, err := Export(net, nil, 0.0123, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{FormatJSON, FormatFP16}, res.Formats)

	for _, name := range []string{WeightsJSONName, WeightsFP16Name, MetadataName} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestExportMetadata(t *testing.T) {
	dir := t.TempDir()
	net := smallNet(t, nn.Direct)

	res, err := Export(net, nil, 0.042, dir)
	require.NoError(t, err)

	meta, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.NumChannels)
	assert.Equal(t, 8, meta.NumVertices)
	assert.Equal(t, 0.042, meta.BestValLoss)
	assert.Equal(t, res.Metadata.ExportID, meta.ExportID)
	assert.NotEmpty(t, meta.ExportID)

	_, err = time.Parse(time.RFC3339, meta.ExportDate)
	assert.NoError(t, err, "export date must be ISO 8601")
}

func TestExportIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	net := smallNet(t, nn.Direct)

	first, err := Export(net, nil, 0.25, dir)
	require.NoError(t, err)
	second, err := Export(net, nil, 0.25, dir)
	require.NoError(t, err)

	// Re-exporting the same frozen model overwrites in place; only the
	// timestamp and export id may differ.
	assert.Equal(t, first.Metadata.NumChannels, second.Metadata.NumChannels)
	assert.Equal(t, first.Metadata.NumVertices, second.Metadata.NumVertices)
	assert.Equal(t, first.Metadata.BestValLoss, second.Metadata.BestValLoss)
	assert.Equal(t, first.Formats, second.Formats)
	assert.NotEqual(t, first.Metadata.ExportID, second.Metadata.ExportID)
}

func TestExportNilNetwork(t *testing.T) {
	_, err := Export(nil, nil, 0, t.TempDir())
	require.Error(t, err)
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	net := smallNet(t, nn.Direct)

	_, err := Export(net, nil, 0.5, dir)
	require.NoError(t, err)

	restored, basis, meta, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, basis)
	assert.Equal(t, 3, meta.NumChannels)

	pose := []float64{0.2, -0.4, 0.6}
	want, err := net.PredictVector(pose)
	require.NoError(t, err)
	got, err := restored.PredictVector(pose)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestLoadCompactRequiresBasis(t *testing.T) {
	dir := t.TempDir()
	net := smallNet(t, nn.Compact)

	basis := &decomposition.Basis{
		Mean:       make([]float64, 24),
		Components: make([]float64, 24*4),
		Dim:        24,
		K:          4,
	}

	_, err := Export(net, basis, 0.1, dir)
	require.NoError(t, err)

	_, gotBasis, _, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, gotBasis)
	assert.Equal(t, 4, gotBasis.K)

	// Strip the basis from the weights document and the load must fail.
	path := filepath.Join(dir, WeightsJSONName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	delete(doc, "basis")
	stripped, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stripped, 0o644))

	_, _, _, err = Load(dir)
	require.Error(t, err)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, _, _, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLoadRejectsMetadataMismatch(t *testing.T) {
	dir := t.TempDir()
	net := smallNet(t, nn.Direct)
	_, err := Export(net, nil, 0.5, dir)
	require.NoError(t, err)

	meta, err := ReadMetadata(dir)
	require.NoError(t, err)
	meta.NumChannels = 99
	require.NoError(t, writeMetadata(dir, *meta))

	_, _, _, err = Load(dir)
	require.Error(t, err)
}
