package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poseml/poseml/export"
	"github.com/poseml/poseml/nn"
	"github.com/poseml/poseml/train"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <checkpoint>",
		Short: "Re-export a saved training checkpoint",
		Long: `Export rebuilds the network from a checkpoint written during training
and serializes it as inference artifacts. Useful for recovering the best
epoch of an earlier run without retraining.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ck, err := train.LoadCheckpoint(args[0])
			if err != nil {
				return err
			}
			net, err := nn.FromSnapshot(ck.Model)
			if err != nil {
				return err
			}
			result, err := export.Export(net, ck.Basis, ck.ValLoss, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported epoch %d (%v) to %s\n",
				ck.Epoch, result.Formats, result.Dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "out", "output directory for exported artifacts")
	return cmd
}
