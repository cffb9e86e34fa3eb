// Package installation implements the installation graph (C4): a recursive,
// parent-linked descriptor model parsed from info.json, with inheritance of
// classpath, arguments, policies, and scripts.
package installation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/protonlauncher/launcher/internal/lerr"
)

// OSTag is the host OS tag used for classpath platform filtering and
// template substitution, one of "windows", "macos", "linux".
var OSTag = hostOSTag()

func hostOSTag() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "macos"
	default:
		return "linux"
	}
}

// ClasspathEntry is one classpath contribution, optionally restricted to a
// set of platforms.
type ClasspathEntry struct {
	File      string
	Platforms []string // empty means "always applies"
}

// Node is one descriptor in the installation graph.
type Node struct {
	ID     string
	Parent *Node
	Scripts map[string]string // hook -> relpath, relative to FilesDir

	MainClass        string // "" means unset
	Classpath        []ClasspathEntry
	ProgramArguments []string
	JavaArguments    []string
	Policies         []string
	JavaVersion      int // 0 means unset

	FilesDir string // absolute path to installation/files/<id>
}

type descriptorJSON struct {
	ID      string             `json:"id"`
	Parent  *string            `json:"parent"`
	Scripts map[string]string  `json:"scripts"`
	Game    gameJSON           `json:"game"`
}

type gameJSON struct {
	MainClass        *string              `json:"main_class"`
	Classpath        []classpathEntryJSON `json:"classpath"`
	ProgramArguments []string             `json:"program_arguments"`
	JavaArguments    []string             `json:"java_arguments"`
	Policies         []string             `json:"policies"`
	JavaVersion      *int                 `json:"java_version"`
}

type classpathEntryJSON struct {
	File      string   `json:"file"`
	Platforms []string `json:"platforms"`
}

// Parse reads installation/files/<id>/info.json under filesRoot and recurses
// into its declared parent, building the in-memory tree (§4.4). Template
// substitution of program_arguments and java_arguments happens at parse
// time with {files} (the absolute descriptor folder), {root} (the process
// working directory), {path} (the PATH environment variable), and the
// entries of substMap, which take precedence. Policy file contents are not
// substituted here; launch.Build substitutes them with the run arguments.
func Parse(filesRoot, id string, substMap map[string]string) (*Node, error) {
	return parseChain(filesRoot, id, substMap, map[string]bool{})
}

func parseChain(filesRoot, id string, substMap map[string]string, seen map[string]bool) (*Node, error) {
	if seen[id] {
		return nil, &lerr.ConfigError{Path: id, Err: fmt.Errorf("cycle detected in installation chain at %q", id)}
	}
	seen[id] = true

	dir := filepath.Join(filesRoot, id)
	infoPath := filepath.Join(dir, "info.json")
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return nil, &lerr.FilesystemError{Op: "read", Path: infoPath, Err: err}
	}

	var raw descriptorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &lerr.ConfigError{Path: infoPath, Err: err}
	}
	if raw.ID == "" {
		return nil, &lerr.ConfigError{Path: infoPath, Err: fmt.Errorf("missing id")}
	}

	var parent *Node
	if raw.Parent != nil && *raw.Parent != "" {
		parent, err = parseChain(filesRoot, *raw.Parent, substMap, seen)
		if err != nil {
			return nil, err
		}
	}

	node := &Node{
		ID:       raw.ID,
		Parent:   parent,
		Scripts:  raw.Scripts,
		FilesDir: dir,
	}

	if raw.Game.MainClass != nil {
		node.MainClass = *raw.Game.MainClass
	}
	for _, entry := range raw.Game.Classpath {
		node.Classpath = append(node.Classpath, ClasspathEntry{File: entry.File, Platforms: entry.Platforms})
	}
	nodeSubst := map[string]string{"path": os.Getenv("PATH")}
	if absDir, err := filepath.Abs(dir); err == nil {
		nodeSubst["files"] = absDir
	}
	if cwd, err := os.Getwd(); err == nil {
		nodeSubst["root"] = cwd
	}
	for name, value := range substMap {
		nodeSubst[name] = value
	}
	for _, arg := range raw.Game.ProgramArguments {
		node.ProgramArguments = append(node.ProgramArguments, substitute(arg, nodeSubst))
	}
	for _, arg := range raw.Game.JavaArguments {
		node.JavaArguments = append(node.JavaArguments, substitute(arg, nodeSubst))
	}
	node.Policies = raw.Game.Policies
	if raw.Game.JavaVersion != nil {
		node.JavaVersion = *raw.Game.JavaVersion
	}

	return node, nil
}

// appliesToOS reports whether a classpath entry is included for osTag, per
// invariant 3: no platforms listed means it always applies.
func (e ClasspathEntry) appliesToOS(osTag string) bool {
	if len(e.Platforms) == 0 {
		return true
	}
	for _, p := range e.Platforms {
		if p == osTag {
			return true
		}
	}
	return false
}

// EffectiveMainClass returns self's main_class if set, else the nearest
// ancestor's. Error if none is set anywhere in the chain.
func (n *Node) EffectiveMainClass() (string, error) {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.MainClass != "" {
			return cur.MainClass, nil
		}
	}
	return "", &lerr.PlanError{Reason: fmt.Sprintf("no main_class in chain rooted at %q", n.ID)}
}

// EffectiveClasspath concatenates self's OS-filtered entries followed by the
// parent's (§3 invariant 5: bottom-up, child first).
func (n *Node) EffectiveClasspath(osTag string) []string {
	var out []string
	for _, entry := range n.Classpath {
		if entry.appliesToOS(osTag) {
			out = append(out, filepath.Join(n.FilesDir, entry.File))
		}
	}
	if n.Parent != nil {
		out = append(out, n.Parent.EffectiveClasspath(osTag)...)
	}
	return out
}

// EffectiveProgramArguments concatenates parent's then self's (parent-first,
// per §4.4's explicit exception to the default child-first rule).
func (n *Node) EffectiveProgramArguments() []string {
	var out []string
	if n.Parent != nil {
		out = append(out, n.Parent.EffectiveProgramArguments()...)
	}
	return append(out, n.ProgramArguments...)
}

// EffectiveJavaArguments concatenates parent's then self's (parent-first).
func (n *Node) EffectiveJavaArguments() []string {
	var out []string
	if n.Parent != nil {
		out = append(out, n.Parent.EffectiveJavaArguments()...)
	}
	return append(out, n.JavaArguments...)
}

// EffectivePolicies concatenates parent's then self's (parent-first), each
// policy path resolved against its descriptor's FilesDir.
func (n *Node) EffectivePolicies() []string {
	var out []string
	if n.Parent != nil {
		out = append(out, n.Parent.EffectivePolicies()...)
	}
	for _, p := range n.Policies {
		out = append(out, filepath.Join(n.FilesDir, p))
	}
	return out
}

// ScriptStep is one (descriptor id, absolute script path) pair in execution
// order for a given hook.
type ScriptStep struct {
	InstallationID string
	Path           string
}

// EffectiveScripts returns the (id, script path) pairs for hook, from root
// to leaf (parent first), the order both install and launch orchestration
// walk the chain in.
func (n *Node) EffectiveScripts(hook string) []ScriptStep {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	// chain is currently leaf-to-root; reverse to root-to-leaf.
	var steps []ScriptStep
	for i := len(chain) - 1; i >= 0; i-- {
		node := chain[i]
		relpath, ok := node.Scripts[hook]
		if !ok || relpath == "" {
			continue
		}
		steps = append(steps, ScriptStep{
			InstallationID: node.ID,
			Path:           filepath.Join(node.FilesDir, relpath),
		})
	}
	return steps
}

// substitute applies the recognized {name} placeholders from substMap;
// unrecognized placeholders pass through unchanged (invariant 4).
func substitute(s string, substMap map[string]string) string {
	out := s
	for name, value := range substMap {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}
