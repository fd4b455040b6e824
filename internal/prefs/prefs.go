// Package prefs persists small user settings in a TOML file, one table per
// application namespace.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Namespace is the table holding this application's settings.
	Namespace = "PersonalTasksPrefs"
	// KeySortOrder stores whether more important tasks are listed first.
	KeySortOrder = "sortMoreImportantFirst"
)

// File is a key-value settings store backed by a TOML file. Reads fall back
// to defaults when the file or key does not exist.
type File struct {
	path      string
	namespace string
	mu        sync.Mutex
}

// Open returns the settings stored at path under namespace. The file is
// created on first write.
func Open(path, namespace string) *File {
	return &File{path: path, namespace: namespace}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Bool returns the value of key, or def when missing or not a boolean.
func (f *File) Bool(key string, def bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return def, err
	}
	v, ok := doc[f.namespace][key].(bool)
	if !ok {
		return def, nil
	}
	return v, nil
}

// SetBool stores key=value, preserving every other setting in the file.
func (f *File) SetBool(key string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	section, ok := doc[f.namespace]
	if !ok {
		section = make(map[string]any)
		doc[f.namespace] = section
	}
	section[key] = value
	return f.save(doc)
}

// SortMoreImportantFirst reads the persisted sort order, defaulting to true.
func (f *File) SortMoreImportantFirst() (bool, error) {
	return f.Bool(KeySortOrder, true)
}

// SetSortMoreImportantFirst persists the sort order.
func (f *File) SetSortMoreImportantFirst(v bool) error {
	return f.SetBool(KeySortOrder, v)
}

func (f *File) load() (map[string]map[string]any, error) {
	doc := make(map[string]map[string]any)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) save(doc map[string]map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create preferences directory: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}
