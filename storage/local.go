// Package storage holds Storage backends for exported images.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mhpenta/autodrip"
)

// Local writes images below a directory on disk.
type Local struct {
	dir string
}

var _ autodrip.Storage = (*Local)(nil)

// NewLocal creates dir if needed and returns a Local rooted there.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// SaveFile writes data to dir/path and returns the absolute file path.
func (l *Local) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// rooting before Clean drops any leading ".." elements
	full := filepath.Join(l.dir, filepath.Clean("/"+path))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	abs, err := filepath.Abs(full)
	if err != nil {
		return full, nil
	}
	return abs, nil
}
