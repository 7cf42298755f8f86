// Package sampler drives tracked pose channels through parameter ranges and
// captures (pose, delta) samples into a dataset store. The host scene graph
// is reached only through the Rig interface; a Collector is an explicit
// session object, never process-wide state.
package sampler

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/poseml/poseml/dataset"
	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
	"github.com/poseml/poseml/preprocessing"
)

// Rig is the host collaborator owning the skeleton and mesh state. Channel
// values are in host units (degrees for rotations). VertexPositions returns
// flat xyz triples. Refresh forces the host to re-evaluate geometry after a
// channel write; capture depends on it completing before the next read.
type Rig interface {
	Channel(name string) (float64, error)
	SetChannel(name string, value float64) error
	Refresh() error
	VertexPositions(mesh string) ([]float64, error)
	MeshExists(mesh string) bool
}

// Collector captures training samples from a rig. Capture is strictly
// sequential: each set/refresh/read step completes before the next begins.
type Collector struct {
	rig        Rig
	baseMesh   string
	corrective string
	channels   []string
	store      *dataset.Store
	norm       *preprocessing.AngleNormalizer
	sessionID  uuid.UUID
	logger     zerolog.Logger
}

// NewCollector creates a capture session over the given base mesh and
// tracked channels.
func NewCollector(rig Rig, baseMesh string, channels []string) (*Collector, error) {
	if rig == nil {
		return nil, errors.NewValueError("NewCollector", "rig must not be nil")
	}
	if baseMesh == "" {
		return nil, errors.NewValueError("NewCollector", "base mesh must not be empty")
	}
	if len(channels) == 0 {
		return nil, errors.NewValueError("NewCollector", "channel list must not be empty")
	}
	return &Collector{
		rig:       rig,
		baseMesh:  baseMesh,
		channels:  append([]string(nil), channels...),
		store:     dataset.NewStore(channels),
		norm:      preprocessing.NewAngleNormalizer(),
		sessionID: uuid.New(),
		logger:    log.GetLogger("sampler"),
	}, nil
}

// SetCorrectiveMesh points the collector at a sculpted corrective target.
// When set and present in the scene, deltas are corrective minus base;
// otherwise deltas are zero.
func (c *Collector) SetCorrectiveMesh(name string) {
	c.corrective = name
}

// Store returns the sample store backing this session.
func (c *Collector) Store() *dataset.Store { return c.store }

// SessionID identifies this capture session.
func (c *Collector) SessionID() uuid.UUID { return c.sessionID }

// CaptureSample captures one sample at the current pose: tracked channel
// values (normalized to model space) paired with the per-vertex delta
// between the corrective target and the skinned base mesh.
func (c *Collector) CaptureSample() (dataset.SampleID, error) {
	pose := make([]float64, 0, len(c.channels))
	for _, ch := range c.channels {
		v, err := c.rig.Channel(ch)
		if err != nil {
			return uuid.Nil, errors.Wrapf(err, "Collector.CaptureSample: read channel %q", ch)
		}
		pose = append(pose, c.norm.Normalize(v))
	}

	base, err := c.rig.VertexPositions(c.baseMesh)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "Collector.CaptureSample: read mesh %q", c.baseMesh)
	}

	delta := make([]float64, len(base))
	if c.corrective != "" && c.rig.MeshExists(c.corrective) {
		target, err := c.rig.VertexPositions(c.corrective)
		if err != nil {
			return uuid.Nil, errors.Wrapf(err, "Collector.CaptureSample: read mesh %q", c.corrective)
		}
		if len(target) != len(base) {
			return uuid.Nil, errors.NewShapeMismatchError("Collector.CaptureSample",
				[]int{len(base) / 3, 3}, []int{len(target) / 3, 3})
		}
		for i := range base {
			delta[i] = target[i] - base[i]
		}
	}

	id, err := c.store.AddSample(pose, delta)
	if err != nil {
		return uuid.Nil, err
	}
	c.logger.Debug().
		Int(log.SamplesKey, c.store.NumSamples()).
		Str("sample_id", id.String()).
		Msg("sample captured")
	return id, nil
}

// CaptureRange drives one tracked channel through steps evenly spaced values
// over [start, end] inclusive, capturing a sample at each. steps==1 captures
// only start. The channel is restored to its pre-call value afterwards, even
// when a step fails mid-range; samples captured before the failure are
// retained (best-effort batch, not transactional).
func (c *Collector) CaptureRange(channel string, start, end float64, steps int) (err error) {
	if steps <= 0 {
		return errors.NewValueError("Collector.CaptureRange", "steps must be positive")
	}
	tracked := false
	for _, ch := range c.channels {
		if ch == channel {
			tracked = true
			break
		}
	}
	if !tracked {
		return errors.NewValueError("Collector.CaptureRange", "channel is not tracked by this session")
	}

	original, err := c.rig.Channel(channel)
	if err != nil {
		return errors.Wrapf(err, "Collector.CaptureRange: read channel %q", channel)
	}
	defer func() {
		if restoreErr := c.rig.SetChannel(channel, original); restoreErr != nil {
			c.logger.Error().Err(restoreErr).
				Str("channel", channel).
				Msg("failed to restore channel after capture")
			if err == nil {
				err = errors.Wrapf(restoreErr, "Collector.CaptureRange: restore channel %q", channel)
			}
		}
	}()

	c.logger.Info().
		Str("channel", channel).
		Float64("start", start).
		Float64("end", end).
		Int("steps", steps).
		Msg("capturing pose range")

	for i := 0; i < steps; i++ {
		value := start
		if steps > 1 {
			value = start + (end-start)*float64(i)/float64(steps-1)
		}
		if err := c.rig.SetChannel(channel, value); err != nil {
			return errors.Wrapf(err, "Collector.CaptureRange: set channel %q step %d", channel, i)
		}
		if err := c.rig.Refresh(); err != nil {
			return errors.Wrapf(err, "Collector.CaptureRange: refresh at step %d", i)
		}
		if _, err := c.CaptureSample(); err != nil {
			return errors.Wrapf(err, "Collector.CaptureRange: capture at step %d", i)
		}
	}
	return nil
}
