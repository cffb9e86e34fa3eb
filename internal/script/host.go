// Package script implements the embedded scripting host (C5): an otto
// (pure-Go ECMAScript) interpreter seeded with the globals and host API
// functions the install and launch scripts rely on.
package script

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/robertkrimen/otto"

	"github.com/protonlauncher/launcher/internal/config"
	"github.com/protonlauncher/launcher/internal/download"
)

// Host owns the shared dependencies every script's host API calls need:
// where to read/write installation files and how to schedule downloads.
type Host struct {
	FilesRoot string // installation/files
	Pool      *download.Pool
	Settings  map[string]config.Setting
}

// NewHost builds a Host bound to a download pool and the current settings
// snapshot, mirroring the teacher's constructor-injects-dependencies shape.
func NewHost(filesRoot string, pool *download.Pool, settings map[string]config.Setting) *Host {
	return &Host{FilesRoot: filesRoot, Pool: pool, Settings: settings}
}

// newInterpreter builds a fresh otto VM with the host API registered,
// closing over currentID so every host function resolves relative paths
// against whichever descriptor is "current" (read from the JS global
// "installation", the same indirection the original's boa host functions use).
func (h *Host) newInterpreter(ctx context.Context) *otto.Otto {
	vm := otto.New()

	currentID := func(call otto.FunctionCall) string {
		v, _ := call.Otto.Get("installation")
		s, _ := v.ToString()
		return s
	}

	filesDirFor := func(call otto.FunctionCall) string {
		return filepath.Join(h.FilesRoot, currentID(call))
	}

	vm.Set("download", func(call otto.FunctionCall) otto.Value {
		url := call.Argument(0).String()
		relpath := call.Argument(1).String()
		singleThread := false
		if len(call.ArgumentList) > 2 {
			singleThread, _ = call.Argument(2).ToBoolean()
		}
		dest := filepath.Join(filesDirFor(call), relpath)
		task := download.Task{URL: url, Dest: dest}
		if singleThread {
			if err := h.Pool.SubmitBlocking(ctx, task); err != nil {
				panic(call.Otto.MakeCustomError("Error", err.Error()))
			}
		} else {
			h.Pool.Submit(ctx, task)
		}
		return otto.NullValue()
	})

	vm.Set("extract", func(call otto.FunctionCall) otto.Value {
		base := filesDirFor(call)
		zipPath := filepath.Join(base, call.Argument(0).String())
		dest := filepath.Join(base, call.Argument(1).String())
		if err := extractZip(zipPath, dest); err != nil {
			panic(call.Otto.MakeCustomError("Error", fmt.Sprintf("extracting %s to %s: %v", zipPath, dest, err)))
		}
		return otto.NullValue()
	})

	vm.Set("read", func(call otto.FunctionCall) otto.Value {
		path := filepath.Join(filesDirFor(call), call.Argument(0).String())
		data, err := os.ReadFile(path)
		if err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		v, _ := vm.ToValue(string(data))
		return v
	})

	vm.Set("write", func(call otto.FunctionCall) otto.Value {
		path := filepath.Join(filesDirFor(call), call.Argument(0).String())
		text := call.Argument(1).String()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		return otto.NullValue()
	})

	vm.Set("to_json", func(call otto.FunctionCall) otto.Value {
		raw := call.Argument(0).String()
		parsed, err := gabs.ParseJSON([]byte(raw))
		if err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		converted, err := toJSValue(parsed.Data())
		if err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		v, _ := vm.ToValue(converted)
		return v
	})

	vm.Set("log", func(call otto.FunctionCall) otto.Value {
		fmt.Println(call.Argument(0).String())
		return otto.NullValue()
	})

	vm.Set("substring", func(call otto.FunctionCall) otto.Value {
		s := []rune(call.Argument(0).String())
		start, _ := call.Argument(1).ToInteger()
		end, _ := call.Argument(2).ToInteger()
		if start < 0 {
			start = 0
		}
		if end > int64(len(s)) {
			end = int64(len(s))
		}
		if end < start {
			end = start
		}
		v, _ := vm.ToValue(string(s[start:end]))
		return v
	})

	vm.Set("append", func(call otto.FunctionCall) otto.Value {
		v, _ := vm.ToValue(call.Argument(0).String() + call.Argument(1).String())
		return v
	})

	vm.Set("replace", func(call otto.FunctionCall) otto.Value {
		s := call.Argument(0).String()
		from := call.Argument(1).String()
		to := call.Argument(2).String()
		v, _ := vm.ToValue(strings.ReplaceAll(s, from, to))
		return v
	})

	vm.Set("regex_capture", func(call otto.FunctionCall) otto.Value {
		s := call.Argument(0).String()
		pattern := call.Argument(1).String()
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		match := re.FindStringSubmatch(s)
		if len(match) < 2 {
			panic(call.Otto.MakeCustomError("Error", fmt.Sprintf("no match for pattern %q in %q", pattern, s)))
		}
		v, _ := vm.ToValue(match[1])
		return v
	})

	vm.Set("copy_file", func(call otto.FunctionCall) otto.Value {
		base := filesDirFor(call)
		src := filepath.Join(base, call.Argument(0).String())
		dst := filepath.Join(base, call.Argument(1).String())
		if err := copyFile(src, dst); err != nil {
			panic(call.Otto.MakeCustomError("Error", err.Error()))
		}
		return otto.NullValue()
	})

	return vm
}

// toJSValue mirrors the original's to_js_json_internal: objects become
// dictionaries, numbers truncate to integers, strings stay strings, anything
// else raises.
func toJSValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			converted, err := toJSValue(inner)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	case string:
		return val, nil
	case float64:
		return int(val), nil
	default:
		return nil, fmt.Errorf("json type not handled: %T", v)
	}
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
