// Package cmd provides the command-line interface of nucasim.
package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/nucasim/config"
)

var (
	flagConfig   string
	flagEnvFile  string
	flagLogLevel string
	flagLogJSON  bool
)

// newRootCmd creates the base command when called without any subcommands.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nucasim",
		Short: "nucasim replays memory traces through a NUCA cache model.",
		Long: `nucasim replays memory access traces through per-core NUCA ` +
			`cache models. It reports hit latencies, access counters and ` +
			`the write-to-read ratio histogram of evicted lines.`,
		SilenceUsage:      true,
		PersistentPreRunE: initializeApplication,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "",
		"YAML configuration file")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env",
		"file of NUCASIM_* variables loaded before the environment is read")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"one of trace, debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false,
		"write logs as JSON")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())

	return root
}

func initializeApplication(cmd *cobra.Command, _ []string) error {
	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	log.SetLevel(level)
	log.SetOutput(cmd.ErrOrStderr())

	if flagLogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
		})
	}

	return nil
}

// loadConfig resolves the configuration of a command: the file, then the
// .env file, then the environment.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if err := config.LoadDotEnv(flagEnvFile); err != nil {
		return nil, err
	}

	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}

	return c, nil
}

func execute(args []string, stdout, stderr io.Writer) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	return rootCmd.Execute()
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := execute(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
