package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FiratKiziltepe/pagebatch/internal/config"
)

var (
	cfgFile string
	verbose bool

	// v is built by initConfig before any command runs.
	v       *viper.Viper
	initErr error
)

var rootCmd = &cobra.Command{
	Use:   "pagebatch",
	Short: "Generate study material from documents under a model's rate limits",
	Long: `pagebatch splits a document into units, groups them into batches and sends
each batch to a generative model while honouring the model's per-minute and
per-day request quotas.

Configuration is read from flags, PAGEBATCH_* environment variables and an
optional YAML file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(policiesCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v, initErr = config.NewViper(cfgFile)
	if initErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", initErr)
		return
	}
	if verbose {
		v.Set(config.KeyLogLevel, "debug")
	}
}

// bindFlags maps command flags onto config keys. Flags only override file and
// environment values when set explicitly.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	if initErr != nil {
		return initErr
	}
	for flag, key := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}
