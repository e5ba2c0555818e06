// Package cmd provides the root command and CLI setup for stlcrunch.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"stlcrunch.dev/pkg/stlcrunch/internal/adapter"
	"stlcrunch.dev/pkg/stlcrunch/internal/domain"
	m "stlcrunch.dev/pkg/stlcrunch/internal/model"
)

var sourceFS adapter.SourceFS
var summaryStore adapter.SummaryStore
var runIDs domain.IDGenerator

// configFileFlag points at an explicit config file; empty means the default
// ./stlcrunch.toml search.
var configFileFlag string

// outDirFlag is a root-level flag naming the run artifact directory.
var outDirFlag string

// noTUIFlag forces the plain line-oriented UI even on a terminal.
var noTUIFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	sourceFS = adapter.NewLocalSourceFS()
	summaryStore = adapter.NewYAMLSummaryStore()
	runIDs = domain.UUIDv7Generator{}
}

const configHelp = `Configuration is read from ./stlcrunch.toml (override with --config) and
the STLCRUNCH_* environment. Run "stlcrunch init" to scaffold a starter
config.`

const rootLongDescription = `Stlcrunch compacts assembly Software Test Libraries. It deletes candidate
instruction lines one unit at a time, re-measures test application time and
fault coverage through an external compile/simulate pipeline, keeps the
deletions that hold or improve quality and restores the rest.

` + configHelp

const runLongDescription = `Run one compaction over the configured STL sources (positional arguments
override [sources].paths).

` + configHelp

const listLongDescription = `List the configured STL sources with their line and candidate counts,
without touching the external flow (positional arguments override
[sources].paths).

` + configHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "stlcrunch",
		Short:             "Assembly STL compaction tool",
		Long:              rootLongDescription,
		PersistentPreRunE: rootPersistentPreRunE,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

// rootPersistentPreRunE resolves the effective config file and sets up the
// global logger before any subcommand runs. A config file that exists but
// does not parse is an error; a missing one is not.
func rootPersistentPreRunE(_ *cobra.Command, _ []string) error {
	if configFileFlag != "" {
		if err := reloadConfig(configFileFlag); err != nil {
			return err
		}
	} else if configReadErr != nil {
		return m.WrapConfigurationError(configReadErr, "read config %s", configFileName)
	}

	configureLogger("", viper.GetBool(logVerboseKey))

	return nil
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFileFlag, configFlagName, "c", "", "config file (default ./"+configFileName+")")

	cmd.PersistentFlags().
		StringVarP(
			&outDirFlag, outFlagName, "o",
			viper.GetString(outputDirKey),
			"output directory for run artifacts",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outFlagName), outputDirKey)

	cmd.PersistentFlags().BoolVar(&noTUIFlag, noTUIFlagName, viper.GetBool(noTUIFlagName), "disable the interactive progress UI")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noTUIFlagName), noTUIFlagName)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
