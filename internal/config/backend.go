package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigBackend abstracts where non-secret settings are persisted.
type ConfigBackend interface {
	Get(key string) (val any, ok bool)
	Set(key string, val any) error
}

// fileBackend stores settings in a YAML file through viper. Dotted keys
// map to nested YAML: server.port is server: {port: ...}.
type fileBackend struct {
	path string
	v    *viper.Viper
}

func newFileBackend(path string) (*fileBackend, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return &fileBackend{path: path, v: v}, nil
}

func (b *fileBackend) Get(key string) (any, bool) {
	if !b.v.IsSet(key) {
		return nil, false
	}
	return b.v.Get(key), true
}

func (b *fileBackend) Set(key string, val any) error {
	b.v.Set(key, val)
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := b.v.WriteConfigAs(b.path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return os.Chmod(b.path, 0o600)
}
