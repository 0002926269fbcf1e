package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// localDir keeps one file per key, for development without a bucket.
type localDir struct {
	path   string
	logger *slog.Logger
}

func (d localDir) String() string { return "local:" + d.path }

func (d localDir) put(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(d.path, ".tmp-"+key)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("Failed to remove temp cache file", "path", tmp.Name(), "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.path, key))
}

func (d localDir) get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.path, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (d localDir) remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(d.path, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d localDir) keys(context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
