// Package state persists the per-stream watermarks between runs.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/cinesync/pkg/models"
)

// Watermarks maps each stream to the newest effective modification time
// that has been fully written to the target. A missing stream means
// nothing has been synced yet.
type Watermarks map[models.Stream]time.Time

func (w Watermarks) Clone() Watermarks {
	out := make(Watermarks, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Store is the durable home of the watermarks. Save must be atomic: after
// a crash the previous or the new set is visible, never a mix.
type Store interface {
	Load(ctx context.Context) (Watermarks, error)
	Save(ctx context.Context, w Watermarks) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend, rooted at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// timeLayout keeps microseconds even when they are zero so the file
// diffs cleanly between commits.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
