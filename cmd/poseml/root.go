package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/poseml/poseml/pkg/errors"
	"github.com/poseml/poseml/pkg/log"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "poseml",
		Short: "Pose-driven corrective displacement models",
		Long: `poseml learns a mapping from rig pose channels to per-vertex
corrective displacements and freezes it for real-time playback.

Typical flow: capture samples in the host application, train on the
saved dataset, then load the exported model into the runtime gate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Setup(logLevel, os.Stderr)
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default poseml.yaml in cwd)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newExportCmd())
	return cmd
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("poseml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("POSEML")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}
