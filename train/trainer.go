// Package train owns the optimization loop: epoch iteration, MSE loss,
// Adam updates, plateau learning-rate scheduling, best-model tracking and
// periodic checkpointing. Training fails fast and loud; the real-time gate
// in package deform is the fail-soft side of the contract.
package train

import (
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/poseml/poseml/core/model"
	"github.com/poseml/poseml/dataset"
	"github.com/poseml/poseml/decomposition"
	"github.com/poseml/poseml/export"
	"github.com/poseml/poseml/metrics"
	"github.com/poseml/poseml/nn"
	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
)

// Config is the training entrypoint record.
type Config struct {
	DatasetPath  string  `mapstructure:"dataset"`
	OutputDir    string  `mapstructure:"output"`
	Arch         string  `mapstructure:"arch"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	ValSplit     float64 `mapstructure:"val_split"`
	Device       string  `mapstructure:"device"`
	Patience     int     `mapstructure:"patience"`
	Seed         int64   `mapstructure:"seed"`
	Components   int     `mapstructure:"components"`

	// ExportBest exports the best checkpoint's weights instead of the final
	// epoch's. Off by default: the historical behavior exports the final
	// in-memory model, and switching silently would change artifacts.
	ExportBest bool `mapstructure:"export_best"`

	// ShowProgress draws a terminal progress bar across epochs.
	ShowProgress bool `mapstructure:"-"`
}

// checkpointPeriod is the unconditional checkpoint interval in epochs.
const checkpointPeriod = 10

// lrFactor halves the learning rate on a validation plateau.
const lrFactor = 0.5

func (c *Config) validate() error {
	if c.DatasetPath == "" {
		return errors.NewValueError("train.Config", "dataset path must not be empty")
	}
	if _, err := os.Stat(c.DatasetPath); os.IsNotExist(err) {
		return errors.NewDatasetNotFoundError(c.DatasetPath)
	}
	if _, err := nn.ParseKind(c.Arch); err != nil {
		return err
	}
	if c.Epochs <= 0 {
		return errors.NewValueError("train.Config", "epochs must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.NewValueError("train.Config", "batch size must be positive")
	}
	if c.LearningRate <= 0 {
		return errors.NewValueError("train.Config", "learning rate must be positive")
	}
	if c.ValSplit < 0 || c.ValSplit >= 1 {
		return errors.NewValueError("train.Config", "validation split must be in [0, 1)")
	}
	switch c.Device {
	case "", "cpu", "auto":
	default:
		return errors.NewValueError("train.Config", "device must be cpu or auto")
	}
	if c.Patience <= 0 {
		c.Patience = 10
	}
	return nil
}

// Result summarizes a completed run.
type Result struct {
	BestValLoss      float64
	FinalValLoss     float64
	TrainLossHistory []float64
	ValLossHistory   []float64
	Export           export.Result
}

// Trainer runs one training session. It exclusively owns the model weights
// and optimizer state for the run's duration; there is no cancellation other
// than process termination.
type Trainer struct {
	model.BaseEstimator

	cfg    Config
	net    *nn.Network
	opt    *nn.Adam
	basis  *decomposition.Basis
	loader *dataset.Loader
	logger zerolog.Logger

	trainLoss []float64
	valLoss   []float64

	bestValLoss float64

	// plateau scheduler state, tracked independently of best-checkpoint
	schedBest float64
	schedWait int
}

// NewTrainer validates the config and prepares a session. The dataset is
// loaded eagerly so shape problems surface before the first epoch.
func NewTrainer(cfg Config) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := log.GetLogger("trainer")
	if cfg.Device == "auto" {
		logger.Info().Msg("device preference auto: gonum computes on cpu")
	}

	store, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	loader, err := dataset.NewLoader(store, cfg.BatchSize, cfg.ValSplit, cfg.Seed)
	if err != nil {
		return nil, err
	}

	kind, _ := nn.ParseKind(cfg.Arch)
	netCfg := nn.DefaultConfig(kind, store.NumChannels(), store.NumVertices())
	netCfg.Seed = cfg.Seed
	if cfg.Components > 0 {
		netCfg.Components = cfg.Components
	}
	net, err := nn.New(netCfg)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:         cfg,
		net:         net,
		opt:         nn.NewAdam(cfg.LearningRate),
		loader:      loader,
		logger:      logger,
		bestValLoss: math.Inf(1),
		schedBest:   math.Inf(1),
	}

	if kind == nn.Compact {
		basis, err := decomposition.FitBasis(loader.Deltas(), netCfg.Components)
		if err != nil {
			return nil, err
		}
		t.basis = basis
	}

	logger.Info().
		Str(log.ArchKey, cfg.Arch).
		Int(log.SamplesKey, loader.NumTrain()+loader.NumVal()).
		Int("train_samples", loader.NumTrain()).
		Int("val_samples", loader.NumVal()).
		Int(log.ChannelsKey, store.NumChannels()).
		Int(log.VerticesKey, store.NumVertices()).
		Msg("training session prepared")
	return t, nil
}

// Network exposes the in-training model; tests use it.
func (t *Trainer) Network() *nn.Network { return t.net }

// Basis returns the fitted PCA basis, nil for non-compact architectures.
func (t *Trainer) Basis() *decomposition.Basis { return t.basis }

// Run executes the full epoch loop, writes checkpoints, and on completion
// exports the final in-memory model (see Config.ExportBest).
func (t *Trainer) Run() (*Result, error) {
	if t.IsFitted() {
		return nil, errors.NewValueError("Trainer.Run", "session already trained; create a new trainer")
	}
	start := time.Now()
	var bar *progressbar.ProgressBar
	if t.cfg.ShowProgress {
		bar = progressbar.NewOptions(t.cfg.Epochs,
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
	}

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		trainLoss, err := t.runEpoch(epoch)
		if err != nil {
			return nil, err
		}
		t.trainLoss = append(t.trainLoss, trainLoss)

		valLoss, err := t.validate(epoch)
		if err != nil {
			return nil, err
		}
		t.valLoss = append(t.valLoss, valLoss)

		t.schedule(valLoss)

		t.logger.Info().
			Int(log.EpochKey, epoch+1).
			Float64(log.TrainLossKey, trainLoss).
			Float64(log.ValLossKey, valLoss).
			Float64(log.LearningRateKey, t.opt.LearningRate()).
			Msg("epoch complete")

		if valLoss < t.bestValLoss {
			t.bestValLoss = valLoss
			if err := t.checkpoint(epoch, valLoss, BestCheckpointName); err != nil {
				return nil, err
			}
			t.logger.Info().
				Int(log.EpochKey, epoch+1).
				Float64(log.ValLossKey, valLoss).
				Msg("best model checkpoint saved")
		}
		if (epoch+1)%checkpointPeriod == 0 {
			if err := t.checkpoint(epoch, valLoss, PeriodicCheckpointName(epoch+1)); err != nil {
				return nil, err
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	t.logger.Info().
		Dur(log.DurationKey, time.Since(start)).
		Float64(log.ValLossKey, t.bestValLoss).
		Msg("training completed")

	if err := SaveLossCurve(t.trainLoss, t.valLoss, t.cfg.OutputDir); err != nil {
		// The curve is a convenience artifact, not training state.
		t.logger.Warn().Err(err).Msg("failed to write loss curve")
	}

	exportNet := t.net
	if t.cfg.ExportBest {
		ck, err := LoadCheckpoint(bestCheckpointPath(t.cfg.OutputDir))
		if err != nil {
			return nil, errors.Wrap(err, "train: load best checkpoint for export")
		}
		exportNet, err = nn.FromSnapshot(ck.Model)
		if err != nil {
			return nil, errors.Wrap(err, "train: restore best checkpoint for export")
		}
	}

	expResult, err := export.Export(exportNet, t.basis, t.bestValLoss, t.cfg.OutputDir)
	if err != nil {
		var partial *errors.PartialExportError
		if errors.As(err, &partial) {
			t.logger.Warn().Err(err).Msg("some export targets failed")
		} else {
			return nil, err
		}
	}

	t.SetFitted()

	res := &Result{
		BestValLoss:      t.bestValLoss,
		TrainLossHistory: append([]float64(nil), t.trainLoss...),
		ValLossHistory:   append([]float64(nil), t.valLoss...),
		Export:           expResult,
	}
	if len(t.valLoss) > 0 {
		res.FinalValLoss = t.valLoss[len(t.valLoss)-1]
	}
	return res, nil
}

// runEpoch iterates all training batches once and returns the mean loss.
func (t *Trainer) runEpoch(epoch int) (float64, error) {
	batches := t.loader.TrainBatches()
	if len(batches) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "Trainer.runEpoch")
	}

	var total float64
	for i, batch := range batches {
		target, err := t.target(batch)
		if err != nil {
			return 0, errors.Wrapf(err, "train: epoch %d batch %d", epoch, i)
		}

		pred := t.net.Forward(batch.X, true)
		loss, err := metrics.MSE(target, pred)
		if err != nil {
			return 0, errors.Wrapf(err, "train: epoch %d batch %d", epoch, i)
		}
		if err := errors.CheckScalar("loss", loss, epoch, i); err != nil {
			return 0, err
		}

		t.net.Backward(mseGrad(pred, target))
		grads := t.net.Grads()
		for _, g := range grads {
			if err := errors.CheckValues("gradient", g.RawMatrix().Data, epoch, i); err != nil {
				return 0, err
			}
		}
		if err := t.opt.Step(t.net.Params(), grads); err != nil {
			return 0, errors.Wrapf(err, "train: epoch %d batch %d", epoch, i)
		}
		total += loss
	}
	return total / float64(len(batches)), nil
}

// validate iterates all validation batches with weight updates disabled.
func (t *Trainer) validate(epoch int) (float64, error) {
	batches := t.loader.ValBatches()
	if len(batches) == 0 {
		// No validation split: validation loss mirrors training loss.
		return t.trainLoss[len(t.trainLoss)-1], nil
	}

	var total float64
	for i, batch := range batches {
		target, err := t.target(batch)
		if err != nil {
			return 0, errors.Wrapf(err, "validate: epoch %d batch %d", epoch, i)
		}
		pred, err := t.net.Predict(batch.X)
		if err != nil {
			return 0, errors.Wrapf(err, "validate: epoch %d batch %d", epoch, i)
		}
		loss, err := metrics.MSE(target, pred)
		if err != nil {
			return 0, errors.Wrapf(err, "validate: epoch %d batch %d", epoch, i)
		}
		total += loss
	}
	return total / float64(len(batches)), nil
}

// target maps a batch's ground-truth deltas into the network's output
// space: identity for direct/residual, PCA coefficients for compact.
func (t *Trainer) target(batch dataset.Batch) (*mat.Dense, error) {
	if t.basis == nil {
		return batch.Y, nil
	}
	return t.basis.ProjectMatrix(batch.Y)
}

// schedule halves the learning rate after Patience epochs without
// validation improvement.
func (t *Trainer) schedule(valLoss float64) {
	if valLoss < t.schedBest {
		t.schedBest = valLoss
		t.schedWait = 0
		return
	}
	t.schedWait++
	if t.schedWait >= t.cfg.Patience {
		lr := t.opt.LearningRate() * lrFactor
		t.opt.SetLearningRate(lr)
		t.schedWait = 0
		t.logger.Info().
			Float64(log.LearningRateKey, lr).
			Msg("validation plateau: learning rate reduced")
	}
}

func (t *Trainer) checkpoint(epoch int, valLoss float64, name string) error {
	ck := &Checkpoint{
		Epoch:            epoch,
		Model:            t.net.Snapshot(),
		Optimizer:        t.opt.State(),
		Basis:            t.basis,
		ValLoss:          valLoss,
		TrainLossHistory: append([]float64(nil), t.trainLoss...),
		ValLossHistory:   append([]float64(nil), t.valLoss...),
		SavedAt:          time.Now(),
	}
	return SaveCheckpoint(ck, t.cfg.OutputDir, name)
}

// mseGrad is d(MSE)/d(pred) = 2*(pred-target)/N over all N elements.
func mseGrad(pred, target *mat.Dense) *mat.Dense {
	r, c := pred.Dims()
	grad := mat.NewDense(r, c, nil)
	grad.Sub(pred, target)
	grad.Scale(2/float64(r*c), grad)
	return grad
}
