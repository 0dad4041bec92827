// Package main implements the primeshard coordinator, which partitions a
// range of integers into chunks, hands them to workers over UDP and
// persists the primes they report.
//
// Architecture:
//
//	┌──────────────────────────────────────────┐
//	│               Coordinator                │
//	├──────────────────────────────────────────┤
//	│  UDP (--host:--port):                    │
//	│    request  -> task [lo,hi] | done       │
//	│    result   -> merged into aggregate     │
//	├──────────────────────────────────────────┤
//	│  HTTP (--metrics-addr, optional):        │
//	│    /health   - lifecycle state and stats │
//	│    /metrics  - Prometheus exposition     │
//	└──────────────────────────────────────────┘
//
// Configuration precedence, lowest first: built-in defaults, the YAML file
// named by --config, environment variables, explicit flags.
//
// Environment:
//   - COORDINATOR_HOST, COORDINATOR_PORT: UDP bind address
//   - COORDINATOR_RANGE: range to search, e.g. "1-100000"
//   - COORDINATOR_CHUNK_SIZE: width of each task
//   - COORDINATOR_OUTPUT: result file
//   - COORDINATOR_TERMINATION: "outstanding" or "legacy"
//   - METRICS_ADDR: HTTP address for /health and /metrics
//   - LOG_LEVEL, LOG_FORMAT: logger settings
//
// Example usage:
//
//	# Search [1,100000] and write data/primes.txt
//	./coordinator --range 1-100000 --chunk-size 1000
//
//	# Check the output afterwards
//	./coordinator verify data/primes.txt --range 1-100000
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/primeshard/internal/chunk"
	"github.com/dreamware/primeshard/internal/config"
	"github.com/dreamware/primeshard/internal/coordinator"
	"github.com/dreamware/primeshard/internal/metrics"
	"github.com/dreamware/primeshard/internal/storage"
)

// shutdownTimeout bounds how long the HTTP server may take to drain.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator failed: %v\n", err)
		os.Exit(1)
	}
}

// options holds raw flag values. Only flags the user actually set are
// applied over the file and environment layers.
type options struct {
	configPath         string
	host               string
	port               int
	rng                string
	chunkSize          int64
	bufferSize         int
	output             string
	termination        string
	drainTimeout       time.Duration
	handlerConcurrency int
	maxEndpoints       int
	metricsAddr        string
	logLevel           string
	logFormat          string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "coordinator",
		Short:        "Distribute a prime search across UDP workers",
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
			return run(cmd.Context(), cfg, logger)
		},
	}

	opts.bind(cmd)
	cmd.AddCommand(newVerifyCommand())
	return cmd
}

// bind registers the flags on cmd with defaults from config.Default.
func (o *options) bind(cmd *cobra.Command) {
	def := config.Default()

	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "YAML configuration file")
	f.StringVar(&o.logLevel, "log-level", def.Log.Level, "log level (debug, info, warn, error)")
	f.StringVar(&o.logFormat, "log-format", def.Log.Format, "log format (text, json)")

	f = cmd.Flags()
	f.StringVar(&o.host, "host", def.Coordinator.Host, "UDP bind host")
	f.IntVar(&o.port, "port", def.Coordinator.Port, "UDP bind port")
	f.StringVar(&o.rng, "range", chunk.MustNew(def.Coordinator.RangeStart, def.Coordinator.RangeEnd).String(), "range to search, e.g. 1-100000")
	f.Int64Var(&o.chunkSize, "chunk-size", def.Coordinator.ChunkSize, "values per task")
	f.IntVar(&o.bufferSize, "buffer-size", def.Coordinator.BufferSize, "maximum datagram size in bytes")
	f.StringVar(&o.output, "output", def.Coordinator.Output, "result file")
	f.StringVar(&o.termination, "termination", def.Coordinator.Termination, "finalization rule (outstanding, legacy)")
	f.DurationVar(&o.drainTimeout, "drain-timeout", 0, "finalize with partial results after this long draining (0 waits forever)")
	f.IntVar(&o.handlerConcurrency, "handlers", def.Coordinator.HandlerConcurrency, "concurrent message handlers")
	f.IntVar(&o.maxEndpoints, "max-endpoints", 0, "cap on remembered workers (0 is unbounded)")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "HTTP address for /health and /metrics (empty disables)")
}

// resolve layers the config file, environment and explicit flags.
func (o *options) resolve(cmd *cobra.Command) (config.File, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	c := &cfg.Coordinator
	if changed("host") {
		c.Host = o.host
	}
	if changed("port") {
		c.Port = o.port
	}
	if changed("range") {
		r, err := chunk.Parse(o.rng)
		if err != nil {
			return cfg, err
		}
		c.RangeStart, c.RangeEnd = r.Lo, r.Hi
	}
	if changed("chunk-size") {
		c.ChunkSize = o.chunkSize
	}
	if changed("buffer-size") {
		c.BufferSize = o.bufferSize
	}
	if changed("output") {
		c.Output = o.output
	}
	if changed("termination") {
		c.Termination = o.termination
	}
	if changed("drain-timeout") {
		c.DrainTimeout = o.drainTimeout
	}
	if changed("handlers") {
		c.HandlerConcurrency = o.handlerConcurrency
	}
	if changed("max-endpoints") {
		c.MaxEndpoints = o.maxEndpoints
	}
	if changed("metrics-addr") {
		c.MetricsAddr = o.metricsAddr
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	return cfg, cfg.Coordinator.Validate()
}

func applyEnv(cfg *config.File) error {
	c := &cfg.Coordinator
	c.Host = getenv("COORDINATOR_HOST", c.Host)
	c.Output = getenv("COORDINATOR_OUTPUT", c.Output)
	c.Termination = getenv("COORDINATOR_TERMINATION", c.Termination)
	c.MetricsAddr = getenv("METRICS_ADDR", c.MetricsAddr)
	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)

	port, err := getenvInt("COORDINATOR_PORT", int64(c.Port))
	if err != nil {
		return err
	}
	c.Port = int(port)

	if c.ChunkSize, err = getenvInt("COORDINATOR_CHUNK_SIZE", c.ChunkSize); err != nil {
		return err
	}

	if v := os.Getenv("COORDINATOR_RANGE"); v != "" {
		r, err := chunk.Parse(v)
		if err != nil {
			return fmt.Errorf("COORDINATOR_RANGE: %w", err)
		}
		c.RangeStart, c.RangeEnd = r.Lo, r.Hi
	}
	return nil
}

// run serves until finalization, ctx cancellation or a fatal error.
// An interrupted run returns nil without persisting anything.
func run(ctx context.Context, cfg config.File, logger *logrus.Logger) error {
	ccfg, err := cfg.Coordinator.ToCoordinator()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	svc, err := coordinator.New(ccfg,
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(metrics.NewPrometheus(reg, "primeshard")),
		coordinator.WithSink(storage.NewFileSink(cfg.Coordinator.Output)),
	)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"addr":        ccfg.Addr,
		"range":       ccfg.Total.String(),
		"chunk_size":  ccfg.ChunkSize,
		"termination": ccfg.Termination,
	}).Info("coordinator listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.ListenAndServe(gctx)
	})

	if addr := cfg.Coordinator.MetricsAddr; addr != "" {
		httpSrv := newHTTPServer(addr, svc, reg)
		g.Go(func() error {
			logger.WithField("addr", addr).Info("metrics listening")
			return serveHTTP(httpSrv)
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-svc.Stopped():
			}
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Warn("coordinator interrupted, results not saved")
		return nil
	}
	if err == nil {
		logger.Info("coordinator stopped")
	}
	return err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
