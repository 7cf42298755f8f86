package train

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poseml/poseml/core/model"
	"github.com/poseml/poseml/decomposition"
	"github.com/poseml/poseml/nn"
	"github.com/poseml/poseml/pkg/errors"
)

// Checkpoint is an immutable snapshot of trainable state at one epoch.
// Checkpoints already written stay valid if the run later aborts.
type Checkpoint struct {
	Epoch            int
	Model            nn.Snapshot
	Optimizer        nn.AdamState
	Basis            *decomposition.Basis
	ValLoss          float64
	TrainLossHistory []float64
	ValLossHistory   []float64
	SavedAt          time.Time
}

const (
	// BestCheckpointName is written whenever validation loss improves on
	// the best seen this run.
	BestCheckpointName = "best_model.ckpt"
)

// PeriodicCheckpointName returns the filename for the unconditional
// every-10-epochs checkpoint.
func PeriodicCheckpointName(epoch int) string {
	return fmt.Sprintf("checkpoint_epoch_%d.ckpt", epoch)
}

func bestCheckpointPath(dir string) string {
	return filepath.Join(dir, BestCheckpointName)
}

// SaveCheckpoint writes a checkpoint to dir/name.
func SaveCheckpoint(ck *Checkpoint, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "SaveCheckpoint: create %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := model.SaveGob(ck, path); err != nil {
		return errors.Wrapf(err, "SaveCheckpoint: write %s", path)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Newf("poseml: checkpoint not found: %s", path)
	}
	var ck Checkpoint
	if err := model.LoadGob(&ck, path); err != nil {
		return nil, errors.NewFormatError(path, err.Error())
	}
	if ck.Epoch < 0 || len(ck.Model.Weights) == 0 {
		return nil, errors.NewFormatError(path, "checkpoint missing model weights")
	}
	return &ck, nil
}
