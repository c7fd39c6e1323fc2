package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/nucasim/config"
	"github.com/sarchlab/nucasim/mem/trace"
	"github.com/sarchlab/nucasim/simulation"
)

type runOptions struct {
	tracePath   string
	record      string
	monitor     bool
	port        int
	openBrowser bool
	cores       int
	warmup      uint64
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a trace and print the statistics.",
		Long: "`run --trace FILE` replays the accesses of FILE, one " +
			"`time_ns,core,R|W,address` line each, and prints the final " +
			"statistics. Use - to read the trace from standard input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}

			opts.apply(cmd, c)

			return run(cmd, c, opts.tracePath)
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&opts.tracePath, "trace", "t", "", "trace file, - for stdin")
	f.StringVar(&opts.record, "record", "",
		"record statistics and accesses into <path>.sqlite3")
	f.BoolVar(&opts.monitor, "monitor", false, "start the monitoring server")
	f.IntVar(&opts.port, "port", 0, "port of the monitoring server")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")
	f.IntVar(&opts.cores, "cores", 1, "number of simulated cores")
	f.Uint64Var(&opts.warmup, "warmup", 0,
		"number of leading accesses that only warm the caches up")

	_ = runCmd.MarkFlagRequired("trace")

	return runCmd
}

// apply lets the flags that were given override the configuration.
func (o *runOptions) apply(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()

	if f.Changed("record") {
		c.Simulation.RecordPath = o.record
	}

	if f.Changed("monitor") {
		c.Simulation.Monitor = o.monitor
	}

	if f.Changed("port") {
		c.Simulation.MonitorPort = o.port
	}

	if f.Changed("open-browser") {
		c.Simulation.OpenBrowser = o.openBrowser
	}

	if f.Changed("cores") {
		c.Simulation.NumCores = o.cores
	}

	if f.Changed("warmup") {
		c.Simulation.WarmupAccesses = o.warmup
	}
}

func run(cmd *cobra.Command, c *config.Config, tracePath string) error {
	in, err := openTrace(cmd, tracePath)
	if err != nil {
		return err
	}
	defer in.Close()

	b, err := simulation.MakeBuilderFromConfig(c)
	if err != nil {
		return err
	}

	s := b.WithLogger(log.StandardLogger()).Build()
	defer s.Terminate()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = s.Replay(ctx, trace.NewReader(in))
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "replay failed")
	}

	if err != nil {
		log.Warn("Replay interrupted, reporting partial statistics")
	}

	s.EndROI()

	return s.Report(cmd.OutOrStdout())
}

func openTrace(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open trace")
	}

	return f, nil
}
