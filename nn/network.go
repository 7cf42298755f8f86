package nn

import (
	"math/rand"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
)

// Kind selects one of the interchangeable architectures.
type Kind string

const (
	// Direct maps the pose straight to numVertices*3 deltas through a
	// dropout-regularized fully-connected stack.
	Direct Kind = "direct"
	// Compact maps the pose to a small coefficient vector expanded back to
	// deltas by a PCA basis; cheapest per-frame evaluation.
	Compact Kind = "compact"
	// Residual uses a fixed-width stack of residual blocks; better for
	// deep corrections.
	Residual Kind = "residual"
)

// ParseKind validates an architecture name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Direct, Compact, Residual:
		return Kind(s), nil
	}
	return "", errors.NewInvalidArchitectureError(s, "unknown architecture kind")
}

// Config is the tagged, per-kind-validated architecture record. Exactly the
// fields relevant to cfg.Kind are consulted; the rest are ignored.
type Config struct {
	Kind        Kind  `json:"kind"`
	NumChannels int   `json:"num_channels"`
	NumVertices int   `json:"num_vertices"`
	Seed        int64 `json:"seed"`

	// Direct and Compact
	Hidden []int `json:"hidden,omitempty"`

	// Direct only
	DropRate float64 `json:"drop_rate,omitempty"`

	// Compact only
	Components int `json:"components,omitempty"`

	// Residual only
	HiddenSize int `json:"hidden_size,omitempty"`
	NumBlocks  int `json:"num_blocks,omitempty"`
}

// DefaultConfig returns the stock hyperparameters for a kind.
func DefaultConfig(kind Kind, numChannels, numVertices int) Config {
	cfg := Config{Kind: kind, NumChannels: numChannels, NumVertices: numVertices}
	switch kind {
	case Direct:
		cfg.Hidden = []int{256, 512, 512, 256}
		cfg.DropRate = 0.1
	case Compact:
		cfg.Hidden = []int{128, 256, 128}
		cfg.Components = 50
	case Residual:
		cfg.HiddenSize = 512
		cfg.NumBlocks = 4
	}
	return cfg
}

// OutputWidth returns the flat prediction width: numVertices*3, or the
// coefficient count for the compact kind.
func (c Config) OutputWidth() int {
	if c.Kind == Compact {
		return c.Components
	}
	return c.NumVertices * 3
}

func (c Config) validate() error {
	if c.NumChannels <= 0 {
		return errors.NewInvalidArchitectureError(string(c.Kind), "num channels must be positive")
	}
	switch c.Kind {
	case Direct:
		if c.NumVertices <= 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "num vertices must be positive")
		}
		if len(c.Hidden) == 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "hidden layer list must not be empty")
		}
		if c.DropRate < 0 || c.DropRate >= 1 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "drop rate must be in [0, 1)")
		}
	case Compact:
		if c.Components <= 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "component count must be positive")
		}
		if len(c.Hidden) == 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "hidden layer list must not be empty")
		}
	case Residual:
		if c.NumVertices <= 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "num vertices must be positive")
		}
		if c.HiddenSize <= 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "hidden size must be positive")
		}
		if c.NumBlocks <= 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "block count must be positive")
		}
	default:
		return errors.NewInvalidArchitectureError(string(c.Kind), "unknown architecture kind")
	}
	for _, h := range c.Hidden {
		if h <= 0 {
			return errors.NewInvalidArchitectureError(string(c.Kind), "hidden layer sizes must be positive")
		}
	}
	return nil
}

// Network is one constructed architecture. A network being trained is owned
// exclusively by its trainer; a frozen network (post-training or loaded from
// an export) is read-only and safe for concurrent Predict.
type Network struct {
	cfg    Config
	layers []layer
}

// New constructs a network from a validated config with Xavier-normal
// initialized weights.
func New(cfg Config) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var layers []layer

	switch cfg.Kind {
	case Direct:
		in := cfg.NumChannels
		for _, h := range cfg.Hidden {
			layers = append(layers, newDense(in, h, rng), &relu{}, &dropout{rate: cfg.DropRate, rng: rng})
			in = h
		}
		layers = append(layers, newDense(in, cfg.NumVertices*3, rng))
	case Compact:
		in := cfg.NumChannels
		for _, h := range cfg.Hidden {
			layers = append(layers, newDense(in, h, rng), &relu{})
			in = h
		}
		layers = append(layers, newDense(in, cfg.Components, rng))
	case Residual:
		layers = append(layers, newDense(cfg.NumChannels, cfg.HiddenSize, rng))
		for i := 0; i < cfg.NumBlocks; i++ {
			layers = append(layers, newResidualBlock(cfg.HiddenSize, rng))
		}
		layers = append(layers, newDense(cfg.HiddenSize, cfg.NumVertices*3, rng))
	}

	net := &Network{cfg: cfg, layers: layers}

	logger := log.GetLogger("nn")
	logger.Info().
		Str(log.ArchKey, string(cfg.Kind)).
		Int(log.ChannelsKey, cfg.NumChannels).
		Int(log.VerticesKey, cfg.NumVertices).
		Str("parameters", humanize.Comma(int64(net.NumParameters()))).
		Msg("network constructed")
	return net, nil
}

// Config returns the architecture record the network was built from.
func (n *Network) Config() Config { return n.cfg }

// NumParameters counts trainable scalars.
func (n *Network) NumParameters() int {
	total := 0
	for _, l := range n.layers {
		for _, p := range l.Params() {
			r, c := p.Dims()
			total += r * c
		}
	}
	return total
}

// Predict evaluates a batch of pose vectors (B×numChannels) and returns
// B×(numVertices*3) deltas, or B×components for the compact kind. The
// inference path mutates no network state.
func (n *Network) Predict(x *mat.Dense) (*mat.Dense, error) {
	_, c := x.Dims()
	if c != n.cfg.NumChannels {
		return nil, errors.NewShapeMismatchError("Network.Predict",
			[]int{n.cfg.NumChannels}, []int{c})
	}
	return n.Forward(x, false), nil
}

// PredictVector evaluates a single pose, the per-frame path used by the
// inference gate.
func (n *Network) PredictVector(pose []float64) ([]float64, error) {
	if len(pose) != n.cfg.NumChannels {
		return nil, errors.NewShapeMismatchError("Network.PredictVector",
			[]int{n.cfg.NumChannels}, []int{len(pose)})
	}
	x := mat.NewDense(1, len(pose), append([]float64(nil), pose...))
	y := n.Forward(x, false)
	return append([]float64(nil), y.RawRowView(0)...), nil
}

// Forward runs the full stack. training=true caches activations for a
// subsequent Backward and enables dropout.
func (n *Network) Forward(x *mat.Dense, training bool) *mat.Dense {
	out := x
	for _, l := range n.layers {
		out = l.Forward(out, training)
	}
	return out
}

// Backward propagates the loss gradient through the stack, accumulating
// parameter gradients. Must follow a Forward with training=true.
func (n *Network) Backward(grad *mat.Dense) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].Backward(grad)
	}
}

// Params returns every trainable parameter matrix in a stable order.
func (n *Network) Params() []*mat.Dense {
	var out []*mat.Dense
	for _, l := range n.layers {
		out = append(out, l.Params()...)
	}
	return out
}

// Grads returns the gradient matrices aligned with Params.
func (n *Network) Grads() []*mat.Dense {
	var out []*mat.Dense
	for _, l := range n.layers {
		out = append(out, l.Grads()...)
	}
	return out
}

// Snapshot is a gob- and JSON-friendly dump of a network's weights.
type Snapshot struct {
	Config  Config      `json:"config"`
	Weights [][]float64 `json:"weights"`
}

// Snapshot copies the current weights out of the network.
func (n *Network) Snapshot() Snapshot {
	snap := Snapshot{Config: n.cfg}
	for _, p := range n.Params() {
		raw := p.RawMatrix()
		snap.Weights = append(snap.Weights, append([]float64(nil), raw.Data...))
	}
	return snap
}

// FromSnapshot reconstructs a network from a snapshot.
func FromSnapshot(snap Snapshot) (*Network, error) {
	net, err := New(snap.Config)
	if err != nil {
		return nil, err
	}
	params := net.Params()
	if len(params) != len(snap.Weights) {
		return nil, errors.NewShapeMismatchError("nn.FromSnapshot",
			[]int{len(params)}, []int{len(snap.Weights)})
	}
	for i, p := range params {
		raw := p.RawMatrix()
		if len(raw.Data) != len(snap.Weights[i]) {
			return nil, errors.NewShapeMismatchError("nn.FromSnapshot",
				[]int{len(raw.Data)}, []int{len(snap.Weights[i])})
		}
		copy(raw.Data, snap.Weights[i])
	}
	return net, nil
}
