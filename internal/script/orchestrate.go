package script

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/robertkrimen/otto"

	"github.com/protonlauncher/launcher/internal/config"
	"github.com/protonlauncher/launcher/internal/installation"
	"github.com/protonlauncher/launcher/internal/lerr"
)

// RunInstall runs the install hook of every descriptor in node's chain
// root-first, each with a fresh interpreter (§4.5 install orchestration).
// After each descriptor's script returns, it blocks on the pool-drain
// barrier (§5) before the next descriptor's script begins.
func (h *Host) RunInstall(ctx context.Context, node *installation.Node) error {
	for _, step := range node.EffectiveScripts("install") {
		vm := h.newInterpreter(ctx)
		h.seedCommonGlobals(vm, step.InstallationID)
		if err := vm.Set("files", installationFilesRelpath(step.InstallationID)); err != nil {
			return fmt.Errorf("seeding files global: %w", err)
		}

		source, err := readScript(step.Path)
		if err != nil {
			return err
		}
		if _, err := vm.Run(source); err != nil {
			return &lerr.ScriptError{Stage: "install", InstallationID: step.InstallationID, Err: err}
		}

		h.Pool.Drain()
	}
	return nil
}

// LaunchOutputs is the set of mutable globals §4.5 seeds for launch scripts
// and §4.7 reads back to build the LaunchPlan.
type LaunchOutputs struct {
	MainClass        string
	Classpath        []string
	JavaArguments    []string
	ProgramArguments []string
	JavaVersion      int // -1 means unset
	Policies         []string
}

// RunLaunch runs the launch hook of every descriptor in node's chain
// root-to-leaf, sharing one interpreter so each script observes and extends
// the accumulating output globals (§4.5 launch orchestration).
//
// The output globals are pre-seeded from node's own declared (info.json)
// contributions, already in the order §4.4/§4.7 specify (classpath
// child-first-then-ancestors; java_arguments/program_arguments/policies
// parent-first), before any script runs. Launch scripts then extend these
// arrays for values a descriptor can only compute at launch time (paths
// resolved against a freshly downloaded file, a generated argument, …); a
// descriptor whose launch script never touches these globals still
// contributes exactly its declared values.
func (h *Host) RunLaunch(ctx context.Context, node *installation.Node, cwd string) (*LaunchOutputs, error) {
	vm := h.newInterpreter(ctx)
	if err := seedLaunchOutputGlobals(vm, node); err != nil {
		return nil, fmt.Errorf("seeding launch output globals: %w", err)
	}

	steps := node.EffectiveScripts("launch")
	for _, step := range steps {
		h.seedCommonGlobals(vm, step.InstallationID)
		vm.Set("files", installationFilesRelpath(step.InstallationID))
		if err := vm.Set("root", cwd); err != nil {
			return nil, fmt.Errorf("seeding root global: %w", err)
		}

		source, err := readScript(step.Path)
		if err != nil {
			return nil, err
		}
		if _, err := vm.Run(source); err != nil {
			return nil, &lerr.ScriptError{Stage: "launch", InstallationID: step.InstallationID, Err: err}
		}
	}

	return harvestOutputs(vm)
}

func (h *Host) seedCommonGlobals(vm *otto.Otto, installationID string) {
	vm.Set("installation", installationID)
	vm.Set("os", installation.OSTag)
	vm.Set("settings", settingsObject(h.Settings))
}

// settingsObject mirrors the settings map into a plain Go value otto can
// turn into a JS object; string arrays join with "," per §4.5.
func settingsObject(settings map[string]config.Setting) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		switch v.Kind {
		case config.KindBool:
			out[k] = v.Bool
		case config.KindInt:
			out[k] = int(v.Int)
		case config.KindString:
			out[k] = v.String
		case config.KindStringList:
			joined := ""
			for i, item := range v.List {
				if i > 0 {
					joined += ","
				}
				joined += item
			}
			out[k] = joined
		default:
			out[k] = nil
		}
	}
	return out
}

func seedLaunchOutputGlobals(vm *otto.Otto, node *installation.Node) error {
	mainClass, _ := node.EffectiveMainClass()
	javaVersion := -1
	for cur := node; cur != nil; cur = cur.Parent {
		if cur.JavaVersion != 0 {
			javaVersion = cur.JavaVersion
			break
		}
	}

	source := fmt.Sprintf(`
		var main_class = %s;
		var classpath = %s;
		var java_arguments = %s;
		var program_arguments = %s;
		var java_version = %d;
		var policies = %s;
	`,
		strconv.Quote(mainClass),
		jsStringArrayLiteral(node.EffectiveClasspath(installation.OSTag)),
		jsStringArrayLiteral(node.EffectiveJavaArguments()),
		jsStringArrayLiteral(node.EffectiveProgramArguments()),
		javaVersion,
		jsStringArrayLiteral(node.EffectivePolicies()),
	)
	_, err := vm.Run(source)
	return err
}

// jsStringArrayLiteral renders a Go string slice as a JS array literal
// source fragment, safely quoting every element.
func jsStringArrayLiteral(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// harvestOutputs reads the launch-output globals back out of vm. Array
// globals are walked by integer index starting at 0 until a non-string
// value appears, per §4.5's script-to-host value bridge.
func harvestOutputs(vm *otto.Otto) (*LaunchOutputs, error) {
	mainClass, err := vm.Get("main_class")
	if err != nil {
		return nil, fmt.Errorf("reading main_class: %w", err)
	}

	javaVersionVal, err := vm.Get("java_version")
	if err != nil {
		return nil, fmt.Errorf("reading java_version: %w", err)
	}
	javaVersion := -1
	if javaVersionVal.IsNumber() {
		n, _ := javaVersionVal.ToInteger()
		javaVersion = int(n)
	}

	classpath, err := harvestStringArray(vm, "classpath")
	if err != nil {
		return nil, err
	}
	javaArgs, err := harvestStringArray(vm, "java_arguments")
	if err != nil {
		return nil, err
	}
	programArgs, err := harvestStringArray(vm, "program_arguments")
	if err != nil {
		return nil, err
	}
	policies, err := harvestStringArray(vm, "policies")
	if err != nil {
		return nil, err
	}

	return &LaunchOutputs{
		MainClass:        mainClass.String(),
		Classpath:        classpath,
		JavaArguments:    javaArgs,
		ProgramArguments: programArgs,
		JavaVersion:      javaVersion,
		Policies:         policies,
	}, nil
}

func harvestStringArray(vm *otto.Otto, name string) ([]string, error) {
	arrVal, err := vm.Get(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	obj := arrVal.Object()
	if obj == nil {
		return nil, nil
	}

	var out []string
	for i := 0; ; i++ {
		elem, err := obj.Get(fmt.Sprintf("%d", i))
		if err != nil {
			return nil, fmt.Errorf("reading %s[%d]: %w", name, i, err)
		}
		if !elem.IsString() {
			break
		}
		out = append(out, elem.String())
	}
	return out, nil
}

func installationFilesRelpath(id string) string {
	return "installation/files/" + id
}
