// Package statestore is the hub SDK's persisted key-value state: the token
// and tenant-selection snapshot a browser client would keep in local storage.
package statestore

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Keys used by the hub client and the cross-system handoff. These names are a
// fixed contract shared with the web frontends, do not rename them.
const (
	KeyAuthToken     = "auth_token"
	KeyCurrentTenant = "current_tenant"
	KeyTenantSlug    = "tenant_slug"
	KeySystemSlug    = "system_slug"
	KeyTenantTheme   = "tenant_theme"
)

type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Memory is the default store. Each instance is isolated, so tests can run
// independent sessions side by side.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// File persists the state as a JSON document, giving CLI tools a session that
// survives process restarts.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

var _ Store = (*File)(nil)

func OpenFile(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[statestore.OpenFile] read")
	}
	if err := json.Unmarshal(data, &f.values); err != nil {
		return nil, errors.Wrap(err, "[statestore.OpenFile] parse")
	}
	return f, nil
}

func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return f.flush()
}

func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[File.flush] marshal")
	}
	return errors.Wrap(os.WriteFile(f.path, data, 0o600), "[File.flush] write")
}
