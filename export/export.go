// Package export freezes a trained network into portable inference
// artifacts. Each target format is attempted independently: one failing
// target is reported as a PartialExportError but never blocks the others,
// and the metadata sidecar is always written so a consumer can validate
// compatibility before touching weights.
package export

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/x448/float16"

	"github.com/poseml/poseml/decomposition"
	"github.com/poseml/poseml/nn"
	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
)

// Artifact filenames within an export directory.
const (
	WeightsJSONName = "model_weights.json"
	WeightsFP16Name = "model_weights.fp16"
	MetadataName    = "model_metadata.json"
)

// Format names reported in metadata and results.
const (
	FormatJSON = "json"
	FormatFP16 = "fp16"
)

// Metadata is the sidecar descriptor written alongside every export.
type Metadata struct {
	NumChannels int      `json:"num_channels"`
	NumVertices int      `json:"num_vertices"`
	BestValLoss float64  `json:"best_val_loss"`
	ExportDate  string   `json:"export_date"` // ISO 8601
	ExportID    string   `json:"export_id"`
	Formats     []string `json:"formats"`
}

// Result reports which targets succeeded.
type Result struct {
	Dir      string
	Formats  []string
	Metadata Metadata
}

// weightsDoc is the JSON weights artifact: full-precision weights plus the
// PCA basis for compact models, enough to rebuild the network for inference.
type weightsDoc struct {
	Model nn.Snapshot          `json:"model"`
	Basis *decomposition.Basis `json:"basis,omitempty"`
}

// Export serializes a frozen network into dir. A zero pose is run through
// the network first to freeze the input/output shape contract; basis may be
// nil for non-compact architectures.
func Export(net *nn.Network, basis *decomposition.Basis, bestValLoss float64, dir string) (Result, error) {
	logger := log.GetLogger("exporter")
	if net == nil {
		return Result{}, errors.NewNotFittedError("Exporter", "Export")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, errors.Wrapf(err, "export: create %s", dir)
	}

	cfg := net.Config()

	// Probe with a fixed zero pose so the serialized form carries a
	// verified shape contract.
	probe := make([]float64, cfg.NumChannels)
	out, err := net.PredictVector(probe)
	if err != nil {
		return Result{}, errors.Wrap(err, "export: shape probe")
	}
	if len(out) != cfg.OutputWidth() {
		return Result{}, errors.NewShapeMismatchError("export: shape probe",
			[]int{cfg.OutputWidth()}, []int{len(out)})
	}

	snap := net.Snapshot()
	var failures []error
	var formats []string

	if err := writeWeightsJSON(dir, weightsDoc{Model: snap, Basis: basis}); err != nil {
		failures = append(failures, errors.NewPartialExportError(FormatJSON, err))
		logger.Error().Err(err).Str(log.FormatKey, FormatJSON).Msg("export target failed")
	} else {
		formats = append(formats, FormatJSON)
		logger.Info().Str(log.FormatKey, FormatJSON).Str(log.PathKey, filepath.Join(dir, WeightsJSONName)).Msg("export target written")
	}

	if err := writeWeightsFP16(dir, snap); err != nil {
		failures = append(failures, errors.NewPartialExportError(FormatFP16, err))
		logger.Error().Err(err).Str(log.FormatKey, FormatFP16).Msg("export target failed")
	} else {
		formats = append(formats, FormatFP16)
		logger.Info().Str(log.FormatKey, FormatFP16).Str(log.PathKey, filepath.Join(dir, WeightsFP16Name)).Msg("export target written")
	}

	meta := Metadata{
		NumChannels: cfg.NumChannels,
		NumVertices: cfg.NumVertices,
		BestValLoss: bestValLoss,
		ExportDate:  time.Now().Format(time.RFC3339),
		ExportID:    uuid.New().String(),
		Formats:     formats,
	}
	if err := writeMetadata(dir, meta); err != nil {
		return Result{}, err
	}

	res := Result{Dir: dir, Formats: formats, Metadata: meta}
	return res, errors.Join(failures...)
}

func writeWeightsJSON(dir string, doc weightsDoc) error {
	file, err := os.Create(filepath.Join(dir, WeightsJSONName))
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(&doc)
}

// fp16 blob layout: magic, version, channel and output widths, parameter
// count, then per parameter rows/cols and half-precision data.
const (
	fp16Magic   = uint32(0x504d4c46) // "PMLF"
	fp16Version = uint32(1)
)

func writeWeightsFP16(dir string, snap nn.Snapshot) error {
	file, err := os.Create(filepath.Join(dir, WeightsFP16Name))
	if err != nil {
		return err
	}
	defer file.Close()

	header := []uint32{
		fp16Magic,
		fp16Version,
		uint32(snap.Config.NumChannels),
		uint32(snap.Config.OutputWidth()),
		uint32(len(snap.Weights)),
	}
	for _, v := range header {
		if err := binary.Write(file, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, w := range snap.Weights {
		if err := binary.Write(file, binary.LittleEndian, uint32(len(w))); err != nil {
			return err
		}
		buf := make([]uint16, len(w))
		for i, v := range w {
			buf[i] = float16.Fromfloat32(float32(v)).Bits()
		}
		if err := binary.Write(file, binary.LittleEndian, buf); err != nil {
			return err
		}
	}
	return nil
}

func writeMetadata(dir string, meta Metadata) error {
	path := filepath.Join(dir, MetadataName)
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "export: write %s", path)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&meta); err != nil {
		return errors.Wrapf(err, "export: encode %s", path)
	}
	return nil
}

// ReadMetadata loads and validates the sidecar from an export directory.
func ReadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("poseml: exported model not found in %s", dir)
		}
		return nil, errors.Wrapf(err, "export: read %s", path)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.NewFormatError(path, err.Error())
	}
	if meta.NumChannels <= 0 {
		return nil, errors.NewFormatError(path, "non-positive channel count")
	}
	return &meta, nil
}

// Load restores a frozen network (and basis for compact models) from an
// export directory. The metadata sidecar is validated first so shape
// incompatibilities surface before any weights are decoded.
func Load(dir string) (*nn.Network, *decomposition.Basis, *Metadata, error) {
	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	path := filepath.Join(dir, WeightsJSONName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "export: read %s", path)
	}
	var doc weightsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, nil, errors.NewFormatError(path, err.Error())
	}
	if doc.Model.Config.NumChannels != meta.NumChannels {
		return nil, nil, nil, errors.NewFormatError(path, "channel count disagrees with metadata")
	}
	net, err := nn.FromSnapshot(doc.Model)
	if err != nil {
		return nil, nil, nil, err
	}
	if doc.Model.Config.Kind == nn.Compact && doc.Basis == nil {
		return nil, nil, nil, errors.NewFormatError(path, "compact model missing expansion basis")
	}
	return net, doc.Basis, meta, nil
}
