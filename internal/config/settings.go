// Package config handles the persisted settings map.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/protonlauncher/launcher/internal/lerr"
)

const settingsFileName = "launcher_settings.json"

// Kind tags which branch of Setting is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindStringList
)

// Setting is a tagged variant over {bool, int32, string, list<string>, null},
// the shapes the original settings format round-trips.
type Setting struct {
	Kind   Kind
	Bool   bool
	Int    int32
	String string
	List   []string
}

func Bool(v bool) Setting       { return Setting{Kind: KindBool, Bool: v} }
func Int(v int32) Setting       { return Setting{Kind: KindInt, Int: v} }
func Str(v string) Setting      { return Setting{Kind: KindString, String: v} }
func StrList(v []string) Setting { return Setting{Kind: KindStringList, List: v} }
func Null() Setting             { return Setting{Kind: KindNull} }

// MarshalJSON encodes a Setting as its bare JSON value, not as a wrapper
// object, so the persisted file reads like an ordinary settings map.
func (s Setting) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindBool:
		return json.Marshal(s.Bool)
	case KindInt:
		return json.Marshal(s.Int)
	case KindString:
		return json.Marshal(s.String)
	case KindStringList:
		return json.Marshal(s.List)
	default:
		return json.Marshal(nil)
	}
}

// UnmarshalJSON infers the Kind from the JSON value's shape. Anything that
// doesn't fit one of the five recognized shapes degrades to null rather than
// failing the whole load, per the settings store's tolerant-load contract.
func (s *Setting) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = Null()
		return nil
	}
	switch v := raw.(type) {
	case nil:
		*s = Null()
	case bool:
		*s = Bool(v)
	case float64:
		*s = Int(int32(v))
	case string:
		*s = Str(v)
	case []interface{}:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				list = append(list, str)
				continue
			}
			*s = Null()
			return nil
		}
		*s = StrList(list)
	default:
		*s = Null()
	}
	return nil
}

// defaults mirrors the recognized-key defaults from the original settings
// format: memory in megabytes, the java executable name on PATH, and a
// developer-mode toggle.
func defaults() map[string]Setting {
	return map[string]Setting{
		"memory":         Int(1024),
		"java_executable": Str("java"),
		"developer_mode": Bool(false),
	}
}

// Manager is a persisted string->Setting map with defaults for recognized
// keys. Unknown keys round-trip preserved across Load/Save.
type Manager struct {
	path   string
	values map[string]Setting
}

// Load reads settingsFileName under dir if present, merging it over the
// built-in defaults (missing keys receive their default; unrecognized JSON
// shapes degrade to null for that key rather than failing the whole load).
func Load(dir string) (*Manager, error) {
	path := filepath.Join(dir, settingsFileName)
	m := &Manager{path: path, values: defaults()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, &lerr.FilesystemError{Op: "read", Path: path, Err: err}
	}

	var onDisk map[string]Setting
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, &lerr.ConfigError{Path: path, Err: err}
	}
	for k, v := range onDisk {
		m.values[k] = v
	}
	return m, nil
}

// Get returns the current value of id, or Null if unset.
func (m *Manager) Get(id string) Setting {
	if v, ok := m.values[id]; ok {
		return v
	}
	return Null()
}

// Set assigns id to value, creating the key if it didn't exist.
func (m *Manager) Set(id string, value Setting) {
	m.values[id] = value
}

// All returns a copy of the full settings map, for seeding a script host's
// `settings` global.
func (m *Manager) All() map[string]Setting {
	out := make(map[string]Setting, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Save writes the whole map as pretty JSON, atomically (write-temp-then-rename).
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return &lerr.FilesystemError{Op: "mkdir", Path: filepath.Dir(m.path), Err: err}
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &lerr.FilesystemError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return &lerr.FilesystemError{Op: "rename", Path: m.path, Err: err}
	}
	return nil
}
