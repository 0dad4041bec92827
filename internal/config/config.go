// Package config loads and validates coordinator and worker settings.
//
// Settings come from three layers, lowest precedence first: the Default*
// constructors, an optional YAML file (Load), and whatever the command line
// overrides after loading. Validate runs last.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/primeshard/internal/chunk"
	"github.com/dreamware/primeshard/internal/coordinator"
	"github.com/dreamware/primeshard/internal/primes"
	"github.com/dreamware/primeshard/internal/protocol"
	"github.com/dreamware/primeshard/internal/worker"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")

	// ErrChunkTooLarge is returned when a worst-case result for one chunk
	// would not fit in a single datagram.
	ErrChunkTooLarge = errors.New("chunk size too large for datagram size")
)

// minBufferSize leaves room for the largest fixed-size message.
const minBufferSize = 64

// File is the root of a YAML configuration file. Either section may be omitted.
type File struct {
	Coordinator Coordinator `yaml:"coordinator"`
	Worker      Worker      `yaml:"worker"`
	Log         Log         `yaml:"log"`
}

// Coordinator configures the coordinator process.
type Coordinator struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	RangeStart         int64         `yaml:"range_start"`
	RangeEnd           int64         `yaml:"range_end"`
	ChunkSize          int64         `yaml:"chunk_size"`
	BufferSize         int           `yaml:"buffer_size"`
	Output             string        `yaml:"output"`
	Termination        string        `yaml:"termination"` // "outstanding" or "legacy"
	HandlerConcurrency int           `yaml:"handler_concurrency"`
	MaxEndpoints       int           `yaml:"max_endpoints"` // 0 = unbounded
	DrainTimeout       time.Duration `yaml:"drain_timeout"` // 0 = wait forever
	MetricsAddr        string        `yaml:"metrics_addr"`  // empty disables /metrics and /health
}

// Worker configures a worker process.
type Worker struct {
	CoordinatorHost string `yaml:"coordinator_host"`
	CoordinatorPort int    `yaml:"coordinator_port"`
	Bind            string `yaml:"bind"`
	BufferSize      int    `yaml:"buffer_size"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultCoordinator returns the stock coordinator settings: the range
// [1,100000] in chunks of 1000 served on 127.0.0.1:9999.
func DefaultCoordinator() Coordinator {
	return Coordinator{
		Host:               "127.0.0.1",
		Port:               9999,
		RangeStart:         1,
		RangeEnd:           100000,
		ChunkSize:          1000,
		BufferSize:         protocol.DefaultMaxDatagramSize,
		Output:             "data/primes.txt",
		Termination:        string(coordinator.TerminationOutstanding),
		HandlerConcurrency: 8,
	}
}

// DefaultWorker returns settings that reach a coordinator started with
// DefaultCoordinator.
func DefaultWorker() Worker {
	return Worker{
		CoordinatorHost: "127.0.0.1",
		CoordinatorPort: 9999,
		Bind:            ":0",
		BufferSize:      protocol.DefaultMaxDatagramSize,
	}
}

// DefaultLog returns info-level text logging.
func DefaultLog() Log {
	return Log{Level: "info", Format: "text"}
}

// Default returns a File populated with every default.
func Default() File {
	return File{
		Coordinator: DefaultCoordinator(),
		Worker:      DefaultWorker(),
		Log:         DefaultLog(),
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values. An empty path returns the defaults unchanged.
// The result is not validated.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Addr returns the coordinator's UDP bind address.
func (c Coordinator) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the coordinator settings, including that no chunk can
// produce a result message larger than BufferSize.
func (c Coordinator) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.RangeStart < 0 {
		return fmt.Errorf("%w: range_start must not be negative, got %d", ErrInvalid, c.RangeStart)
	}
	if c.RangeEnd == math.MaxInt64 {
		return fmt.Errorf("%w: range_end must be below %d", ErrInvalid, int64(math.MaxInt64))
	}
	if _, err := chunk.New(c.RangeStart, c.RangeEnd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.ChunkSize)
	}
	if c.BufferSize < minBufferSize {
		return fmt.Errorf("%w: buffer_size must be at least %d, got %d", ErrInvalid, minBufferSize, c.BufferSize)
	}
	switch coordinator.TerminationPolicy(c.Termination) {
	case coordinator.TerminationOutstanding, coordinator.TerminationLegacy:
	default:
		return fmt.Errorf("%w: unknown termination %q", ErrInvalid, c.Termination)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("%w: drain_timeout must not be negative", ErrInvalid)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalid)
	}

	if size := c.RangeEnd - c.RangeStart + 1; c.ChunkSize > size {
		return fmt.Errorf("%w: chunk_size %d exceeds range size %d", ErrInvalid, c.ChunkSize, size)
	}
	if need := protocol.MaxResultSize(primes.MaxInWindow(c.ChunkSize), c.RangeEnd); need > int64(c.BufferSize) {
		return fmt.Errorf("%w: chunk_size %d may need %d bytes, buffer_size is %d",
			ErrChunkTooLarge, c.ChunkSize, need, c.BufferSize)
	}
	return nil
}

// ToCoordinator converts validated settings to a coordinator.Config.
func (c Coordinator) ToCoordinator() (coordinator.Config, error) {
	if err := c.Validate(); err != nil {
		return coordinator.Config{}, err
	}
	return coordinator.Config{
		Addr:               c.Addr(),
		Total:              chunk.MustNew(c.RangeStart, c.RangeEnd),
		ChunkSize:          c.ChunkSize,
		MaxDatagramSize:    c.BufferSize,
		HandlerConcurrency: c.HandlerConcurrency,
		MaxEndpoints:       c.MaxEndpoints,
		Termination:        coordinator.TerminationPolicy(c.Termination),
		DrainTimeout:       c.DrainTimeout,
	}, nil
}

// CoordinatorAddr returns the coordinator's UDP address as host:port.
func (w Worker) CoordinatorAddr() string {
	return net.JoinHostPort(w.CoordinatorHost, strconv.Itoa(w.CoordinatorPort))
}

// Validate checks the worker settings.
func (w Worker) Validate() error {
	if w.CoordinatorHost == "" {
		return fmt.Errorf("%w: coordinator_host is empty", ErrInvalid)
	}
	if err := validatePort(w.CoordinatorPort); err != nil {
		return err
	}
	if w.BufferSize < minBufferSize {
		return fmt.Errorf("%w: buffer_size must be at least %d, got %d", ErrInvalid, minBufferSize, w.BufferSize)
	}
	return nil
}

// ToWorker converts validated settings to a worker.Config.
func (w Worker) ToWorker() (worker.Config, error) {
	if err := w.Validate(); err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		CoordinatorAddr: w.CoordinatorAddr(),
		BindAddr:        w.Bind,
		MaxDatagramSize: w.BufferSize,
	}, nil
}

// Apply configures l's level and formatter.
func (c Log) Apply(l *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch strings.ToLower(c.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Format)
	}
	l.SetLevel(level)
	return nil
}

func validatePort(p int) error {
	if p <= 0 || p > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, p)
	}
	return nil
}
