package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/primeshard/internal/config"
	"github.com/dreamware/primeshard/internal/primes"
	"github.com/dreamware/primeshard/internal/storage"
	"github.com/dreamware/primeshard/internal/worker"
)

// TestGetenv tests the getenv utility function
func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      string
		expected string
	}{
		{
			name:     "environment variable set",
			key:      "TEST_ENV_VAR",
			value:    "test_value",
			def:      "default",
			expected: "test_value",
		},
		{
			name:     "environment variable not set",
			key:      "UNSET_ENV_VAR",
			def:      "default_value",
			expected: "default_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.expected, getenv(tt.key, tt.def))
		})
	}
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("PRIMESHARD_TEST_INT", "42")
	n, err := getenvInt("PRIMESHARD_TEST_INT", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = getenvInt("PRIMESHARD_TEST_UNSET", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	t.Setenv("PRIMESHARD_TEST_INT", "forty-two")
	_, err = getenvInt("PRIMESHARD_TEST_INT", 7)
	assert.ErrorContains(t, err, "PRIMESHARD_TEST_INT")
}

func parseOptions(t *testing.T, args ...string) (*options, *cobra.Command) {
	t.Helper()
	opts := &options{}
	cmd := &cobra.Command{Use: "coordinator"}
	opts.bind(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return opts, cmd
}

// TestResolvePrecedence tests defaults < file < environment < flags
func TestResolvePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
coordinator:
  port: 7000
  range_end: 5000
  chunk_size: 100
  output: from-file.txt
`), 0o644))

	t.Setenv("COORDINATOR_PORT", "7100")
	t.Setenv("COORDINATOR_OUTPUT", "from-env.txt")

	opts, cmd := parseOptions(t, "--config", path, "--output", "from-flag.txt", "--log-level", "debug")
	cfg, err := opts.resolve(cmd)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), cfg.Coordinator.RangeEnd, "file over default")
	assert.Equal(t, int64(100), cfg.Coordinator.ChunkSize, "file over default")
	assert.Equal(t, 7100, cfg.Coordinator.Port, "env over file")
	assert.Equal(t, "from-flag.txt", cfg.Coordinator.Output, "flag over env")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1", cfg.Coordinator.Host, "default kept")
}

func TestResolveRangeFlag(t *testing.T) {
	opts, cmd := parseOptions(t, "--range", "[1,30]", "--chunk-size", "10")
	cfg, err := opts.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Coordinator.RangeStart)
	assert.Equal(t, int64(30), cfg.Coordinator.RangeEnd)
	assert.Equal(t, int64(10), cfg.Coordinator.ChunkSize)
}

func TestResolveRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "bad range flag", args: []string{"--range", "ten-twenty"}},
		{name: "chunk too large", args: []string{"--chunk-size", "5000"}},
		{name: "bad termination", args: []string{"--termination", "never"}},
		{name: "bad env port", env: map[string]string{"COORDINATOR_PORT": "http"}},
		{name: "bad env range", env: map[string]string{"COORDINATOR_RANGE": "1-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts, cmd := parseOptions(t, tt.args...)
			_, err := opts.resolve(cmd)
			assert.Error(t, err)
		})
	}
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

// TestRunCompletesSearch drives run with three in-process workers
func TestRunCompletesSearch(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out", "primes.txt")

	cfg := config.Default()
	cfg.Coordinator.Port = freeUDPPort(t)
	cfg.Coordinator.RangeEnd = 2000
	cfg.Coordinator.ChunkSize = 100
	cfg.Coordinator.Output = output

	logger, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- run(ctx, cfg, logger) }()

	// requests sent before the bind would be lost
	time.Sleep(100 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := worker.New(worker.Config{CoordinatorAddr: cfg.Coordinator.Addr()}, worker.WithLogger(logger))
			_, err := w.Run(ctx)
			assert.NoError(t, err)
		}()
	}

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("coordinator did not finish")
	}
	wg.Wait()

	got, err := storage.ReadFile(output)
	require.NoError(t, err)
	assert.Len(t, got, primes.Count(1, 2000))
	assert.NoError(t, verify(got, nil))
}

func TestRunInterruptedDoesNotPersist(t *testing.T) {
	output := filepath.Join(t.TempDir(), "primes.txt")

	cfg := config.Default()
	cfg.Coordinator.Port = freeUDPPort(t)
	cfg.Coordinator.Output = output

	logger, hook := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, cfg, logger) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.NoFileExists(t, output)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "coordinator interrupted, results not saved", hook.LastEntry().Message)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Coordinator.ChunkSize = 0
	logger, _ := logtest.NewNullLogger()
	assert.ErrorIs(t, run(context.Background(), cfg, logger), config.ErrInvalid)
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"host", "port", "range", "chunk-size", "buffer-size", "output",
		"termination", "drain-timeout", "handlers", "max-endpoints", "metrics-addr"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	for _, name := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}

	verifyCmd, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)
	assert.Equal(t, "verify", verifyCmd.Name())
	assert.Equal(t, "9999", cmd.Flags().Lookup("port").DefValue)
	assert.Equal(t, strconv.Itoa(4096), cmd.Flags().Lookup("buffer-size").DefValue)
}
