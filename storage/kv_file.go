package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FileKV stores each key as a JSON file under a data directory. One match
// snapshot is one file, rewritten whole on every save.
type FileKV struct {
	dataDir string
}

// NewFileKV creates the data directory if needed
func NewFileKV(dataDir string) (*FileKV, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return &FileKV{dataDir: dataDir}, nil
}

// keyFile maps a key to its file path. Path separators in keys are flattened
// so a hostile key cannot escape the data directory.
func (f *FileKV) keyFile(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(f.dataDir, safe+".json")
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.keyFile(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	// Write-then-rename so a crash mid-write never leaves a torn snapshot.
	path := f.keyFile(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	err := os.Remove(f.keyFile(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileKV) Close() error { return nil }
