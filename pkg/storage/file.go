package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/moby/sys/atomicwriter"
	"github.com/sirupsen/logrus"
)

// AppName names the data directory.
const AppName = "regman"

const (
	fileExt  = ".dat"
	dirMode  = 0o700
	fileMode = 0o600
)

var keyReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// DefaultDataDir returns the per-user data directory, $XDG_DATA_HOME/regman.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// FileAdapter stores each key as "<key>.dat" in a directory. Characters that are
// unsafe in file names are replaced with underscores.
type FileAdapter struct {
	dir string
}

// NewFileAdapter creates the directory if needed. An empty dir selects DefaultDataDir.
func NewFileAdapter(dir string) (*FileAdapter, error) {
	if dir == "" {
		dir = DefaultDataDir()
	}

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, newError(KindNotAvailable, "", err)
	}

	logrus.WithField("dir", dir).Debug("Using file storage")

	return &FileAdapter{dir: dir}, nil
}

// Dir returns the storage directory.
func (a *FileAdapter) Dir() string {
	return a.dir
}

func (a *FileAdapter) path(key string) string {
	return filepath.Join(a.dir, keyReplacer.Replace(key)+fileExt)
}

// Store writes data atomically with owner-only permissions.
func (a *FileAdapter) Store(key string, data []byte) error {
	if err := atomicwriter.WriteFile(a.path(key), data, fileMode); err != nil {
		return newError(KindIO, key, err)
	}

	return nil
}

// Retrieve reads the data for key.
func (a *FileAdapter) Retrieve(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(a.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, newError(KindIO, key, err)
	}

	return data, true, nil
}

// Remove deletes key. Missing keys are ignored.
func (a *FileAdapter) Remove(key string) error {
	err := os.Remove(a.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newError(KindIO, key, err)
	}

	return nil
}

// Clear removes every stored key, leaving other files alone.
func (a *FileAdapter) Clear() error {
	entries, err := a.entries()
	if err != nil {
		return err
	}

	for _, name := range entries {
		if err := os.Remove(filepath.Join(a.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return newError(KindIO, strings.TrimSuffix(name, fileExt), err)
		}
	}

	return nil
}

// Keys lists the stored keys in sanitized form, sorted.
func (a *FileAdapter) Keys() ([]string, error) {
	entries, err := a.entries()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, name := range entries {
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}

	slices.Sort(keys)

	return keys, nil
}

func (a *FileAdapter) entries() ([]string, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, newError(KindIO, "", err)
	}

	var names []string

	for _, entry := range dirEntries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == fileExt {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}
