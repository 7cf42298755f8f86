// Package deform applies exported corrective models inside a host rig
// evaluation loop. The Gate is the runtime entry point: it holds at most
// one loaded model, is safe for concurrent Apply calls, and fails soft.
// A disabled gate, a missing model, or any fault during prediction leaves
// vertex positions untouched; the host never sees a panic.
package deform

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/poseml/poseml/decomposition"
	"github.com/poseml/poseml/export"
	"github.com/poseml/poseml/nn"
	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
	"github.com/poseml/poseml/preprocessing"
)

// Weight bounds accepted by Apply. Values outside are clamped, matching
// the envelope range a rigger can dial in.
const (
	MinWeight = 0.0
	MaxWeight = 2.0
)

// Gate evaluates a loaded corrective model against pose channel values and
// adds the predicted displacement to vertex positions. The zero value is a
// valid, unloaded gate.
type Gate struct {
	mu     sync.RWMutex
	net    *nn.Network
	basis  *decomposition.Basis
	meta   *export.Metadata
	norm   *preprocessing.AngleNormalizer
	logger zerolog.Logger
}

// NewGate returns an empty gate. Load must succeed before Apply has any
// effect.
func NewGate() *Gate {
	return &Gate{
		norm:   preprocessing.NewAngleNormalizer(),
		logger: log.GetLogger("gate"),
	}
}

// Load reads an exported model directory and swaps it in atomically.
// A failed load leaves any previously loaded model in place.
func (g *Gate) Load(dir string) error {
	net, basis, meta, err := export.Load(dir)
	if err != nil {
		g.logger.Error().Err(err).Str(log.PathKey, dir).Msg("model load failed")
		return err
	}

	g.mu.Lock()
	g.net = net
	g.basis = basis
	g.meta = meta
	g.mu.Unlock()

	g.logger.Info().
		Str(log.PathKey, dir).
		Int(log.ChannelsKey, meta.NumChannels).
		Int(log.VerticesKey, meta.NumVertices).
		Float64(log.ValLossKey, meta.BestValLoss).
		Msg("model loaded")
	return nil
}

// Unload drops the current model. Subsequent Apply calls are no-ops.
func (g *Gate) Unload() {
	g.mu.Lock()
	g.net, g.basis, g.meta = nil, nil, nil
	g.mu.Unlock()
}

// Loaded reports whether a model is available.
func (g *Gate) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.net != nil
}

// Metadata returns the descriptor of the loaded model, or nil.
func (g *Gate) Metadata() *export.Metadata {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.meta
}

// Apply predicts the corrective displacement for pose (channel values in
// degrees) and adds weight*delta to positions in place. When enabled is
// false, no model is loaded, or prediction faults, positions are left
// untouched. Faults are logged and swallowed, never surfaced to the host:
// the visual result of a bad frame is simply no correction.
func (g *Gate) Apply(pose, positions []float64, weight float64, enabled bool) {
	if !enabled {
		return
	}

	g.mu.RLock()
	net, basis := g.net, g.basis
	g.mu.RUnlock()
	if net == nil {
		return
	}

	if weight < MinWeight {
		weight = MinWeight
	} else if weight > MaxWeight {
		weight = MaxWeight
	}
	if weight == 0 {
		return
	}

	var delta []float64
	err := errors.SafeExecute("gate apply", func() error {
		cfg := net.Config()
		if len(pose) != cfg.NumChannels {
			return errors.NewShapeMismatchError("gate pose",
				[]int{cfg.NumChannels}, []int{len(pose)})
		}
		if len(positions) != 3*cfg.NumVertices {
			return errors.NewShapeMismatchError("gate positions",
				[]int{3 * cfg.NumVertices}, []int{len(positions)})
		}

		out, err := net.PredictVector(g.norm.NormalizedCopy(pose))
		if err != nil {
			return err
		}
		if basis != nil {
			out, err = basis.Expand(out)
			if err != nil {
				return err
			}
		}
		if len(out) != len(positions) {
			return errors.NewShapeMismatchError("gate delta",
				[]int{len(positions)}, []int{len(out)})
		}
		delta = out
		return nil
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("prediction fault, displacement skipped")
		return
	}

	for i, d := range delta {
		positions[i] += weight * d
	}
}
