package asset

import (
	"encoding/json"
	"os"

	"github.com/protonlauncher/launcher/internal/lerr"
)

type infoStub struct {
	Parent *string `json:"parent"`
}

// readParentID reads just the "parent" field out of an info.json, so the
// fetcher can recurse without depending on the full installation graph
// parser in internal/installation.
func readParentID(infoPath string) (string, error) {
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return "", &lerr.FilesystemError{Op: "read", Path: infoPath, Err: err}
	}
	var stub infoStub
	if err := json.Unmarshal(data, &stub); err != nil {
		return "", &lerr.ConfigError{Path: infoPath, Err: err}
	}
	if stub.Parent == nil {
		return "", nil
	}
	return *stub.Parent, nil
}
