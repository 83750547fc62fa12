package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/BartekS5/cinesync/pkg/utils"
)

// File keys are shared with the loader this service replaced, so an
// existing state file keeps working.
var fileKeys = map[models.Stream]string{
	models.StreamFilms:  "movies_updated_after",
	models.StreamGenres: "genres_updated_after",
	models.StreamPeople: "persons_updated_after",
}

const legacyFilmsKey = "updated_after"

// FileStore keeps the watermarks in a small JSON document, rewritten with
// a temp file and rename.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) (Watermarks, error) {
	w := Watermarks{}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file '%s': %w", s.Path, err)
	}

	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse state file '%s': %w", s.Path, err)
	}

	for stream, key := range fileKeys {
		val := raw[key]
		if val == nil && stream == models.StreamFilms {
			val = raw[legacyFilmsKey]
		}
		if val == nil || *val == "" {
			continue
		}
		t, err := utils.ConvertDateTime(*val)
		if err != nil {
			return nil, fmt.Errorf("state file '%s', key %s: %w", s.Path, key, err)
		}
		w[stream] = t
	}
	return w, nil
}

func (s *FileStore) Save(_ context.Context, w Watermarks) error {
	out := make(map[string]string, len(w))
	for stream, t := range w {
		key, ok := fileKeys[stream]
		if !ok {
			return fmt.Errorf("unknown stream %q", stream)
		}
		out[key] = formatTime(t)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.Path, data)
}

func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
