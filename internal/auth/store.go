package auth

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/protonlauncher/launcher/internal/lerr"
)

const profileFileName = "account.json"

// LoadProfile reads account.json under dir, the opaque serialised Profile
// blob (§6 on-disk layout).
func LoadProfile(dir string) (*Profile, error) {
	path := filepath.Join(dir, profileFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &lerr.FilesystemError{Op: "read", Path: path, Err: err}
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &lerr.ConfigError{Path: path, Err: err}
	}
	return &p, nil
}

// SaveProfile writes p as account.json under dir atomically.
func SaveProfile(dir string, p *Profile) error {
	path := filepath.Join(dir, profileFileName)
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &lerr.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &lerr.FilesystemError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &lerr.FilesystemError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
