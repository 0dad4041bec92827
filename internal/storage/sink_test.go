package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/primeshard/internal/primes"
)

// TestFileSinkPersist tests the line format and accumulation order on disk
func TestFileSinkPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "primes.txt")
	sink := NewFileSink(path)

	values := []int64{11, 13, 2, 3, 5, 7}
	receipt, err := sink.Persist(context.Background(), values)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "11\n13\n2\n3\n5\n7\n", string(raw))

	assert.Equal(t, path, receipt.Location)
	assert.Equal(t, len(values), receipt.Count)
	assert.Equal(t, int64(len(raw)), receipt.Bytes)
	assert.NotZero(t, receipt.Digest)

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, values, back)

	for _, v := range back {
		assert.True(t, primes.IsPrime(v), "%d is not prime", v)
	}
}

func TestFileSinkOverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	sink := NewFileSink(path)

	_, err := sink.Persist(context.Background(), []int64{2, 3, 5, 7, 11})
	require.NoError(t, err)
	_, err = sink.Persist(context.Background(), []int64{13})
	require.NoError(t, err)

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{13}, back)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestFileSinkEmptyAggregate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	receipt, err := NewFileSink(path).Persist(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.Count)

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestFileSinkCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "never.txt")
	_, err := NewFileSink(path).Persist(ctx, []int64{2})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewFileSinkDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewFileSink("").Path)
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("2\n\nthree\n"), 0o644))

	_, err := ReadFile(path)
	assert.ErrorContains(t, err, ":3:")
}

// TestReadFileWithoutTrailingNewline accepts files joined with "\n" only between values
func TestReadFileWithoutTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joined.txt")
	require.NoError(t, os.WriteFile(path, []byte("2\n3\n5"), 0o644))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 5}, back)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	assert.Nil(t, sink.Last())

	in := []int64{5, 2, 3}
	receipt, err := sink.Persist(context.Background(), in)
	require.NoError(t, err)
	in[0] = 0

	assert.Equal(t, 1, sink.Writes())
	assert.Equal(t, []int64{5, 2, 3}, sink.Last())
	assert.Equal(t, int64(len("5\n2\n3\n")), receipt.Bytes)

	require.NoError(t, sink.Close())
	_, err = sink.Persist(context.Background(), in)
	assert.ErrorIs(t, err, ErrSinkClosed)
}

// TestDigestMatchesAcrossSinks checks both sinks hash the same payload identically
func TestDigestMatchesAcrossSinks(t *testing.T) {
	values := primes.Sieve(1, 500)

	fileReceipt, err := NewFileSink(filepath.Join(t.TempDir(), "p.txt")).Persist(context.Background(), values)
	require.NoError(t, err)
	memReceipt, err := NewMemorySink().Persist(context.Background(), values)
	require.NoError(t, err)

	assert.Equal(t, fileReceipt.Digest, memReceipt.Digest)
	assert.Equal(t, fileReceipt.Bytes, memReceipt.Bytes)
}
