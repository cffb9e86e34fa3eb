package launch

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/protonlauncher/launcher/internal/script"
)

func TestBuild_MissingMainClassIsFatal(t *testing.T) {
	_, err := Build(&script.LaunchOutputs{}, t.TempDir(), RunArguments{})
	if err == nil {
		t.Fatal("expected PlanError, got nil")
	}
}

func TestBuild_SubstitutesRunArguments(t *testing.T) {
	outputs := &script.LaunchOutputs{
		MainClass:        "com.example.Main",
		ProgramArguments: []string{"--uuid", "{uuid}", "--user", "{username}", "--token", "{access_token}"},
	}
	plan, err := Build(outputs, t.TempDir(), RunArguments{AccessToken: "tok", UUID: "u-1", Username: "Steve"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{"--uuid", "u-1", "--user", "Steve", "--token", "tok"}
	for i, w := range want {
		if plan.ProgramArguments[i] != w {
			t.Errorf("ProgramArguments[%d] = %q, want %q", i, plan.ProgramArguments[i], w)
		}
	}
}

func TestBuild_PoliciesGeneratePolicyFile(t *testing.T) {
	cwd := t.TempDir()
	policyPath := filepath.Join(cwd, "game.policy")
	if err := os.WriteFile(policyPath, []byte("grant { permission java.security.AllPermission; };"), 0o644); err != nil {
		t.Fatal(err)
	}

	outputs := &script.LaunchOutputs{
		MainClass: "com.example.Main",
		Policies:  []string{policyPath},
	}
	plan, err := Build(outputs, cwd, RunArguments{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cwd, "policy.policy"))
	if err != nil {
		t.Fatalf("expected policy.policy to exist: %v", err)
	}
	if len(data) == 0 {
		t.Error("policy.policy is empty")
	}

	found := map[string]bool{}
	for _, arg := range plan.JavaArguments {
		found[arg] = true
	}
	for _, want := range []string{"-Djava.security.manager", "-Djava.security.policy==policy.policy", "-DLWJGL_DISABLE_XRANDR=true", "-Dsecurity_location=security.security"} {
		if !found[want] {
			t.Errorf("missing injected flag %q in %v", want, plan.JavaArguments)
		}
	}
}

func TestArgv_Assembly(t *testing.T) {
	plan := &Plan{
		MainClass:        "com.example.Main",
		Classpath:        []string{"a.jar", "b.jar"},
		JavaArguments:    []string{"-Xmx1G"},
		ProgramArguments: []string{"--demo"},
	}
	argv := plan.Argv()

	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}
	want := []string{"-Xmx1G", "-cp", "." + sep + "a.jar" + sep + "b.jar", "com.example.Main", "--demo"}
	if len(argv) != len(want) {
		t.Fatalf("Argv() = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}
