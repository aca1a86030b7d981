package assoc

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrNotExist is returned when a registry key or value does not exist.
var ErrNotExist = errors.New("registry key or value does not exist")

// Keys is the subset of the current user registry used by a [Registrar].
// Paths are relative to HKEY_CURRENT_USER and use backslash separators.
// An empty value name is the default value of a key.
type Keys interface {
	// SetString creates the key when needed and writes a string value.
	SetString(path, name, value string) error
	// SetNone creates the key when needed and writes an empty value without data.
	SetNone(path, name string) error
	// String reads a string value, ErrNotExist is returned when it is missing.
	String(path, name string) (string, error)
	// ValueNames lists the value names of a key.
	ValueNames(path string) ([]string, error)
	// SubKeyNames lists the direct subkey names of a key.
	SubKeyNames(path string) ([]string, error)
	// DeleteValue removes a value from a key.
	DeleteValue(path, name string) error
	// DeleteTree removes a key and all of its subkeys, a missing key is not an error.
	DeleteTree(path string) error
	// Notify tells the shell that the file associations changed.
	Notify()
}

// Memory is an in-memory registry, it is safe for concurrent use.
// Key paths are case-insensitive as they are in the Windows registry.
type Memory struct {
	mu       sync.Mutex
	keys     map[string]map[string]string
	names    map[string]string // names maps a folded key path to its original case
	Notified int               // Notified counts the calls to Notify.
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{keys: map[string]map[string]string{}, names: map[string]string{}}
}

func fold(path string) string {
	return strings.ToLower(strings.Trim(path, `\`))
}

func (m *Memory) create(path string) map[string]string {
	// parent keys exist implicitly, as created by RegCreateKeyEx
	parts := strings.Split(strings.Trim(path, `\`), `\`)
	for i := 1; i <= len(parts); i++ {
		orig := strings.Join(parts[:i], `\`)
		p := fold(orig)
		if _, ok := m.keys[p]; !ok {
			m.keys[p] = map[string]string{}
			m.names[p] = orig
		}
	}
	return m.keys[fold(path)]
}

func (m *Memory) SetString(path, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.create(path)[name] = value
	return nil
}

func (m *Memory) SetNone(path, name string) error {
	return m.SetString(path, name, "")
}

func (m *Memory) String(path, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.keys[fold(path)]
	if !ok {
		return "", ErrNotExist
	}
	v, ok := vals[name]
	if !ok {
		return "", ErrNotExist
	}
	return v, nil
}

func (m *Memory) ValueNames(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.keys[fold(path)]
	if !ok {
		return nil, ErrNotExist
	}
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *Memory) SubKeyNames(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent := fold(path)
	if _, ok := m.keys[parent]; !ok {
		return nil, ErrNotExist
	}
	prefix := parent + `\`
	var names []string
	for k := range m.keys {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok || strings.Contains(rest, `\`) {
			continue
		}
		orig := m.names[k]
		names = append(names, orig[strings.LastIndex(orig, `\`)+1:])
	}
	slices.Sort(names)
	return names, nil
}

func (m *Memory) DeleteValue(path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.keys[fold(path)]
	if !ok {
		return ErrNotExist
	}
	if _, ok := vals[name]; !ok {
		return ErrNotExist
	}
	delete(vals, name)
	return nil
}

func (m *Memory) DeleteTree(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fold(path)
	prefix := k + `\`
	for key := range m.keys {
		if key == k || strings.HasPrefix(key, prefix) {
			delete(m.keys, key)
			delete(m.names, key)
		}
	}
	return nil
}

func (m *Memory) Notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified++
}

// Exists reports whether the key exists.
func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[fold(path)]
	return ok
}
