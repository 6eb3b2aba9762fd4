package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/pkg/errors"
)

var _ credentials.KeyValue = (*fileKeyValue)(nil)

// fileKeyValue persists the credential store as a single JSON file, standing
// in for the browser's localStorage. Every write rewrites the file; the data
// set is a handful of short strings so that is fine here.
type fileKeyValue struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

func newFileKeyValue(path string) (*fileKeyValue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[newFileKeyValue] create data folder")
	}

	kv := &fileKeyValue{path: path, values: make(map[string]string)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, errors.Wrap(err, "[newFileKeyValue] read store file")
	}
	if err := json.Unmarshal(raw, &kv.values); err != nil {
		// Corrupt store file: start empty rather than failing startup.
		kv.values = make(map[string]string)
	}
	return kv, nil
}

func (f *fileKeyValue) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *fileKeyValue) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flushLocked()
}

func (f *fileKeyValue) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return f.flushLocked()
}

func (f *fileKeyValue) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for key := range f.values {
		keys = append(keys, key)
	}
	return keys, nil
}

func (f *fileKeyValue) flushLocked() error {
	raw, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[fileKeyValue] marshal values")
	}
	return errors.Wrap(os.WriteFile(f.path, raw, 0o600), "[fileKeyValue] write store file")
}
