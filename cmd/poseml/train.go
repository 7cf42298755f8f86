package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/poseml/poseml/train"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a corrective model on a captured dataset",
		Long: `Train runs the optimization loop on a captured sample dataset and
writes checkpoints, a loss curve and the exported model into the output
directory. Flags may also come from the config file or POSEML_*
environment variables; flags win.`,
		RunE: runTrain,
	}

	flags := cmd.Flags()
	flags.String("dataset", "", "path to a captured sample dataset")
	flags.String("output", "out", "output directory for checkpoints and exports")
	flags.String("arch", "direct", "architecture: direct, compact or residual")
	flags.Int("epochs", 200, "number of training epochs")
	flags.Int("batch-size", 32, "minibatch size")
	flags.Float64("learning-rate", 1e-3, "initial Adam learning rate")
	flags.Float64("val-split", 0.2, "fraction of samples held out for validation")
	flags.String("device", "cpu", "compute device (cpu or auto)")
	flags.Int("patience", 10, "plateau epochs before the learning rate halves")
	flags.Int64("seed", 42, "random seed for splits and weight init")
	flags.Int("components", 0, "PCA components for the compact architecture (0 = default)")
	flags.Bool("export-best", false, "export the best checkpoint instead of the final model")

	for flag, key := range map[string]string{
		"dataset":       "dataset",
		"output":        "output",
		"arch":          "arch",
		"epochs":        "epochs",
		"batch-size":    "batch_size",
		"learning-rate": "learning_rate",
		"val-split":     "val_split",
		"device":        "device",
		"patience":      "patience",
		"seed":          "seed",
		"components":    "components",
		"export-best":   "export_best",
	} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}

	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	var cfg train.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return err
	}
	cfg.ShowProgress = true

	trainer, err := train.NewTrainer(cfg)
	if err != nil {
		return err
	}
	result, err := trainer.Run()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "best validation loss %.6g after %d epochs\n",
		result.BestValLoss, len(result.TrainLossHistory))
	fmt.Fprintf(cmd.OutOrStdout(), "exported %v to %s\n", result.Export.Formats, result.Export.Dir)
	return nil
}
