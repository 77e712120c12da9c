package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

// FileSystem is the file access the engine needs: UTF-8 source in, rewritten
// source out, barrel files removed.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Remove(path string) error
}

// SourceReader reads source files through a read-only memory map and copies
// the bytes out before unmapping, so callers own the returned slice and the
// file can be rewritten later in the same run.
//
// Files that cannot be mapped (pipes, some network mounts) fall back to
// os.ReadFile.
type SourceReader struct {
	logger *slog.Logger

	reads        atomic.Int64
	mmapFailures atomic.Int64
}

// NewSourceReader creates a SourceReader. A nil logger uses slog.Default().
func NewSourceReader(logger *slog.Logger) *SourceReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceReader{logger: logger}
}

// ReadFile returns the contents of path.
func (r *SourceReader) ReadFile(path string) ([]byte, error) {
	r.reads.Add(1)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %q: %w", path, err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("failed to read %q: is a directory", path)
	}
	// mmap cannot map zero bytes
	if stat.Size() == 0 {
		return []byte{}, nil
	}

	region, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		r.mmapFailures.Add(1)
		r.logger.Debug("mmap failed, using fallback", "file", path, "error", err)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %q: %w", path, readErr)
		}
		return data, nil
	}

	data := make([]byte, len(region))
	copy(data, region)
	if err := region.Unmap(); err != nil {
		r.logger.Warn("failed to unmap file", "file", path, "error", err)
	}
	return data, nil
}

// WriteFile replaces the contents of path, keeping its permission bits.
func (r *SourceReader) WriteFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if stat, err := os.Stat(path); err == nil {
		mode = stat.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

// Remove deletes path.
func (r *SourceReader) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}
	return nil
}

// SourceStats reports reader counters.
type SourceStats struct {
	Reads        int64
	MmapFailures int64
}

// Stats returns the current counters.
func (r *SourceReader) Stats() SourceStats {
	return SourceStats{
		Reads:        r.reads.Load(),
		MmapFailures: r.mmapFailures.Load(),
	}
}
