// Package launch implements the launch plan builder (C7) and process
// launcher (C8): merging script-harvested globals into a LaunchPlan, then
// resolving a JVM and spawning it.
package launch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/protonlauncher/launcher/internal/lerr"
	"github.com/protonlauncher/launcher/internal/script"
)

// RunArguments are the per-launch values substituted into {access_token},
// {uuid}, {username} placeholders (§4.7).
type RunArguments struct {
	AccessToken string
	UUID        string
	Username    string
}

// Plan is the fully materialised JVM invocation (§4.7).
type Plan struct {
	MainClass        string
	Classpath        []string
	JavaArguments    []string
	ProgramArguments []string
	Policies         []string
	JavaVersion      int // 0 means unset
	PolicyFilePath   string
}

const (
	policyFileName   = "policy.policy"
	securityFileName = "security.security"
)

// Build synthesizes a Plan from a launch script's harvested outputs. Empty
// main_class is a fatal PlanError. All list entries are template-substituted
// with args before the plan is returned. If policies is non-empty, their
// contents are concatenated into cwd/policy.policy and the matching JVM
// security-manager flags are injected into JavaArguments.
func Build(outputs *script.LaunchOutputs, cwd string, args RunArguments) (*Plan, error) {
	if outputs.MainClass == "" {
		return nil, &lerr.PlanError{Reason: "main_class is empty"}
	}

	substMap := map[string]string{
		"access_token": args.AccessToken,
		"uuid":         args.UUID,
		"username":     args.Username,
	}

	javaVersion := outputs.JavaVersion
	if javaVersion < 0 {
		javaVersion = 0
	}
	plan := &Plan{
		MainClass:        outputs.MainClass,
		Classpath:        substituteAll(outputs.Classpath, substMap),
		JavaArguments:    substituteAll(outputs.JavaArguments, substMap),
		ProgramArguments: substituteAll(outputs.ProgramArguments, substMap),
		JavaVersion:      javaVersion,
	}

	if len(outputs.Policies) > 0 {
		policyPath := filepath.Join(cwd, policyFileName)
		content, err := concatenatePolicies(outputs.Policies, substMap)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(policyPath, []byte(content), 0o644); err != nil {
			return nil, &lerr.FilesystemError{Op: "write", Path: policyPath, Err: err}
		}
		plan.Policies = outputs.Policies
		plan.PolicyFilePath = policyPath
		plan.JavaArguments = append(plan.JavaArguments,
			"-Djava.security.manager",
			"-Djava.security.policy=="+policyFileName,
			"-DLWJGL_DISABLE_XRANDR=true",
			"-Dsecurity_location="+securityFileName,
		)
	}

	return plan, nil
}

func substituteAll(items []string, substMap map[string]string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = substituteTemplate(item, substMap)
	}
	return out
}

func substituteTemplate(s string, substMap map[string]string) string {
	out := s
	for name, value := range substMap {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// concatenatePolicies reads each policy file's contents and concatenates
// them, template-substituting each file's body. Paths are read as given:
// those seeded from info.json are already resolved against their
// descriptor's folder; a relative path pushed by a launch script resolves
// against the process working directory, not cwd.
func concatenatePolicies(policyPaths []string, substMap map[string]string) (string, error) {
	var b strings.Builder
	for _, p := range policyPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", &lerr.FilesystemError{Op: "read", Path: p, Err: err}
		}
		b.WriteString(substituteTemplate(string(data), substMap))
		b.WriteString("\n")
	}
	return b.String(), nil
}
