package script

import (
	"os"

	"github.com/protonlauncher/launcher/internal/lerr"
)

func readScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &lerr.FilesystemError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}
