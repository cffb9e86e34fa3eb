package installation

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDescriptor(t *testing.T, root, id, json string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info.json"), []byte(json), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParse_FreshInstallNoParent(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "X", `{
		"id": "X", "parent": null,
		"game": {"main_class": "M", "classpath": [{"file": "a.jar"}]}
	}`)

	node, err := Parse(root, "X", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mc, err := node.EffectiveMainClass()
	if err != nil || mc != "M" {
		t.Fatalf("EffectiveMainClass = %q, %v", mc, err)
	}
	cp := node.EffectiveClasspath("linux")
	if len(cp) != 1 || filepath.Base(cp[0]) != "a.jar" {
		t.Errorf("EffectiveClasspath = %v", cp)
	}
}

func TestParse_TwoLevelInheritance(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "A", `{
		"id": "A", "parent": null,
		"game": {"main_class": "M", "java_arguments": ["-Xms256M"]}
	}`)
	writeDescriptor(t, root, "B", `{
		"id": "B", "parent": "A",
		"game": {"java_arguments": ["-Xmx1G"]}
	}`)

	node, err := Parse(root, "B", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := node.EffectiveJavaArguments()
	want := []string{"-Xms256M", "-Xmx1G"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("EffectiveJavaArguments = %v, want %v", got, want)
	}
}

func TestParse_PlatformFilteredClasspath(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "X", `{
		"id": "X", "parent": null,
		"game": {"main_class": "M", "classpath": [{"file": "native-linux.so", "platforms": ["linux"]}]}
	}`)

	node, err := Parse(root, "X", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cp := node.EffectiveClasspath("linux"); len(cp) != 1 {
		t.Errorf("linux classpath = %v, want 1 entry", cp)
	}
	if cp := node.EffectiveClasspath("macos"); len(cp) != 0 {
		t.Errorf("macos classpath = %v, want 0 entries", cp)
	}
}

func TestParse_MissingMainClassIsPlanError(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "X", `{"id": "X", "parent": null, "game": {}}`)

	node, err := Parse(root, "X", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := node.EffectiveMainClass(); err == nil {
		t.Fatal("expected PlanError, got nil")
	}
}

func TestParse_CycleDetected(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "A", `{"id": "A", "parent": "B", "game": {}}`)
	writeDescriptor(t, root, "B", `{"id": "B", "parent": "A", "game": {}}`)

	if _, err := Parse(root, "A", nil); err == nil {
		t.Fatal("expected cycle error, got nil")
	}
}

func TestParse_TemplateSubstitution(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "X", `{
		"id": "X", "parent": null,
		"game": {"main_class": "M", "program_arguments": ["--token", "{access_token}", "--unknown", "{nope}"]}
	}`)

	node, err := Parse(root, "X", map[string]string{"access_token": "secret"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	args := node.EffectiveProgramArguments()
	if args[1] != "secret" {
		t.Errorf("args[1] = %q, want %q", args[1], "secret")
	}
	if args[3] != "{nope}" {
		t.Errorf("unrecognized placeholder should pass through, got %q", args[3])
	}
}

func TestEffectiveScripts_RootToLeafOrder(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "A", `{"id": "A", "parent": null, "scripts": {"install": "install.js"}, "game": {}}`)
	writeDescriptor(t, root, "B", `{"id": "B", "parent": "A", "scripts": {"install": "install.js"}, "game": {}}`)

	node, err := Parse(root, "B", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	steps := node.EffectiveScripts("install")
	if len(steps) != 2 || steps[0].InstallationID != "A" || steps[1].InstallationID != "B" {
		t.Errorf("EffectiveScripts = %+v, want root-to-leaf [A, B]", steps)
	}
}
