package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultPath is where the coordinator writes its aggregate unless configured otherwise.
const DefaultPath = "data/primes.txt"

// ErrSinkClosed is returned by MemorySink after Close.
var ErrSinkClosed = errors.New("sink closed")

// Sink persists the final aggregate.
// Implementations receive the values in accumulation order and must keep it.
type Sink interface {
	// Persist writes primes and reports where and how much was written.
	Persist(ctx context.Context, primes []int64) (Receipt, error)
}

// Receipt describes a completed write.
type Receipt struct {
	Location string // File path or sink name
	Count    int    // Number of values written
	Bytes    int64  // Payload size in bytes
	Digest   uint64 // xxh3 digest of the payload, for comparing runs
}

// FileSink writes one integer per line to a text file.
//
// The file is written to a temporary sibling and renamed into place, so a
// crash mid-write never leaves a truncated result at Path. The parent
// directory is created when missing.
type FileSink struct {
	Path string
}

// NewFileSink creates a FileSink for path, falling back to DefaultPath.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultPath
	}
	return &FileSink{Path: path}
}

// Persist implements Sink.
func (s *FileSink) Persist(ctx context.Context, primes []int64) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Receipt{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return Receipt{}, fmt.Errorf("create temp for %s: %w", s.Path, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	hasher := xxh3.New()
	w := bufio.NewWriter(tmp)
	var size int64
	var line []byte
	for _, p := range primes {
		line = strconv.AppendInt(line[:0], p, 10)
		line = append(line, '\n')
		n, err := w.Write(line)
		if err != nil {
			tmp.Close()
			return Receipt{}, fmt.Errorf("write %s: %w", s.Path, err)
		}
		_, _ = hasher.Write(line)
		size += int64(n)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return Receipt{}, fmt.Errorf("flush %s: %w", s.Path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Receipt{}, fmt.Errorf("sync %s: %w", s.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return Receipt{}, fmt.Errorf("close %s: %w", s.Path, err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return Receipt{}, fmt.Errorf("rename into %s: %w", s.Path, err)
	}

	return Receipt{
		Location: s.Path,
		Count:    len(primes),
		Bytes:    size,
		Digest:   hasher.Sum64(),
	}, nil
}

// ReadFile loads a file written by FileSink, preserving line order.
// Blank lines are skipped; any other non-integer line is an error.
func ReadFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []int64
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// MemorySink keeps persisted aggregates in memory. Used by tests and by
// embedders that want the result without touching disk.
type MemorySink struct {
	mu     sync.Mutex // Protects writes and closed
	writes [][]int64  // One entry per Persist call
	closed bool
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Persist implements Sink.
func (m *MemorySink) Persist(ctx context.Context, primes []int64) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Receipt{}, ErrSinkClosed
	}

	stored := make([]int64, len(primes))
	copy(stored, primes)
	m.writes = append(m.writes, stored)

	hasher := xxh3.New()
	var size int64
	var line []byte
	for _, p := range stored {
		line = strconv.AppendInt(line[:0], p, 10)
		line = append(line, '\n')
		_, _ = hasher.Write(line)
		size += int64(len(line))
	}
	return Receipt{Location: "memory", Count: len(stored), Bytes: size, Digest: hasher.Sum64()}, nil
}

// Writes returns how many times Persist succeeded.
func (m *MemorySink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// Last returns a copy of the most recent write, or nil if none.
func (m *MemorySink) Last() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return nil
	}
	last := m.writes[len(m.writes)-1]
	out := make([]int64, len(last))
	copy(out, last)
	return out
}

// Close rejects further writes.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
