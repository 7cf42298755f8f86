package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/poseml/poseml/dataset"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dataset>",
		Short: "Print the shape and channels of a captured dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataset.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "samples:  %s\n", humanize.Comma(int64(store.NumSamples())))
			fmt.Fprintf(out, "channels: %d\n", store.NumChannels())
			fmt.Fprintf(out, "vertices: %s\n", humanize.Comma(int64(store.NumVertices())))
			if names := store.ChannelNames(); len(names) > 0 {
				fmt.Fprintf(out, "names:    %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}
