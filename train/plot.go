package train

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/poseml/poseml/pkg/errors"
)

// LossCurveName is the training-curve image written next to checkpoints.
const LossCurveName = "loss_curve.png"

// SaveLossCurve renders train/validation loss histories to dir/loss_curve.png.
func SaveLossCurve(trainLoss, valLoss []float64, dir string) error {
	if len(trainLoss) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "train.SaveLossCurve")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "SaveLossCurve: create %s", dir)
	}

	p := plot.New()
	p.Title.Text = "Training Loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "MSE"

	trainLine, err := plotter.NewLine(toXYs(trainLoss))
	if err != nil {
		return errors.Wrap(err, "SaveLossCurve: train line")
	}
	trainLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(trainLine)
	p.Legend.Add("train", trainLine)

	if len(valLoss) > 0 {
		valLine, err := plotter.NewLine(toXYs(valLoss))
		if err != nil {
			return errors.Wrap(err, "SaveLossCurve: validation line")
		}
		valLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
		p.Add(valLine)
		p.Legend.Add("validation", valLine)
	}

	path := filepath.Join(dir, LossCurveName)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "SaveLossCurve: write %s", path)
	}
	return nil
}

func toXYs(vals []float64) plotter.XYs {
	xys := make(plotter.XYs, len(vals))
	for i, v := range vals {
		xys[i].X = float64(i + 1)
		xys[i].Y = v
	}
	return xys
}
