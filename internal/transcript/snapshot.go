package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashureev/skinconsult/internal/domain"
)

// SnapshotFile appends end-of-session snapshots to one NDJSON file.
type SnapshotFile struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotFile prepares path for appending.
func NewSnapshotFile(path string) (*SnapshotFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &SnapshotFile{path: path}, nil
}

// Publish writes snap as a single line.
func (f *SnapshotFile) Publish(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := appendLine(f.path, line); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}
