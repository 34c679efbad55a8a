package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/greenwinther/guess-the-song2/internal/snapshot"
)

// File stores every room as one element of a JSON array.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) ([]snapshot.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var rooms []json.RawMessage
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}

	records := make([]snapshot.Record, 0, len(rooms))
	for _, raw := range rooms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var head struct {
			Code      any `json:"code"`
			ExpiresAt any `json:"expiresAt"`
		}
		_ = json.Unmarshal(raw, &head)
		rec := snapshot.Record{Payload: raw}
		rec.Code, _ = head.Code.(string)
		if exp, ok := head.ExpiresAt.(float64); ok {
			rec.ExpiresAt = int64(exp)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save writes to a temp file next to the target and renames it over.
func (f *File) Save(ctx context.Context, records []snapshot.Record) error {
	rooms := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		rooms = append(rooms, rec.Payload)
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Close() error { return nil }
