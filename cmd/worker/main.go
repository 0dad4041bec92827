// Package main implements a primeshard worker. A worker asks the
// coordinator for a chunk, finds the primes in it, reports them and asks
// again until the coordinator answers done.
//
// Configuration precedence, lowest first: built-in defaults, the YAML file
// named by --config, environment variables, explicit flags.
//
// Environment:
//   - COORDINATOR_HOST, COORDINATOR_PORT: coordinator UDP address
//   - WORKER_BIND: local UDP address (default ":0")
//   - LOG_LEVEL, LOG_FORMAT: logger settings
//
// Example usage:
//
//	# One worker against a local coordinator
//	./worker
//
//	# Four workers in one process
//	./worker --count 4 --coordinator-host 10.0.0.5
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/primeshard/internal/config"
	"github.com/dreamware/primeshard/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "worker failed: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath      string
	coordinatorHost string
	coordinatorPort int
	bindAddr        string
	bufferSize      int
	count           int
	logLevel        string
	logFormat       string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "worker",
		Short:        "Find primes in chunks handed out by a coordinator",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			logger := logrus.StandardLogger()
			if err := cfg.Log.Apply(logger); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts.count, logger)
		},
	}
	opts.bind(cmd)
	return cmd
}

func (o *options) bind(cmd *cobra.Command) {
	def := config.Default()

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "YAML configuration file")
	f.StringVar(&o.coordinatorHost, "coordinator-host", def.Worker.CoordinatorHost, "coordinator UDP host")
	f.IntVar(&o.coordinatorPort, "coordinator-port", def.Worker.CoordinatorPort, "coordinator UDP port")
	f.StringVar(&o.bindAddr, "bind", def.Worker.Bind, "local UDP address")
	f.IntVar(&o.bufferSize, "buffer-size", def.Worker.BufferSize, "maximum datagram size in bytes")
	f.IntVar(&o.count, "count", 1, "workers to run in this process")
	f.StringVar(&o.logLevel, "log-level", def.Log.Level, "log level (debug, info, warn, error)")
	f.StringVar(&o.logFormat, "log-format", def.Log.Format, "log format (text, json)")
}

func (o *options) resolve(cmd *cobra.Command) (config.File, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}

	w := &cfg.Worker
	w.CoordinatorHost = getenv("COORDINATOR_HOST", w.CoordinatorHost)
	w.Bind = getenv("WORKER_BIND", w.Bind)
	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)
	if v := os.Getenv("COORDINATOR_PORT"); v != "" {
		if w.CoordinatorPort, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("COORDINATOR_PORT: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("coordinator-host") {
		w.CoordinatorHost = o.coordinatorHost
	}
	if changed("coordinator-port") {
		w.CoordinatorPort = o.coordinatorPort
	}
	if changed("bind") {
		w.Bind = o.bindAddr
	}
	if changed("buffer-size") {
		w.BufferSize = o.bufferSize
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	if o.count < 1 {
		return cfg, fmt.Errorf("%w: count must be at least 1, got %d", config.ErrInvalid, o.count)
	}
	return cfg, cfg.Worker.Validate()
}

// run starts count workers and waits for all of them. The first error
// cancels the rest.
func run(ctx context.Context, cfg config.File, count int, logger logrus.FieldLogger) error {
	wcfg, err := cfg.Worker.ToWorker()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		log := logger.WithField("worker", i)
		g.Go(func() error {
			sum, err := worker.New(wcfg, worker.WithLogger(log)).Run(gctx)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"chunks": sum.Chunks,
				"primes": sum.Primes,
			}).Debug("worker finished")
			return nil
		})
	}
	return g.Wait()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
