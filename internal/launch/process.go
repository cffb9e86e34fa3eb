package launch

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/protonlauncher/launcher/internal/javahome"
	"github.com/protonlauncher/launcher/internal/lerr"
)

// classpathSeparator is ";" on Windows, ":" elsewhere (§4.8 step 2).
func classpathSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// Argv builds the JVM argv for plan: [java_args…, -cp, "."+sep+classpath,
// main_class, program_args…].
func (p *Plan) Argv() []string {
	sep := classpathSeparator()
	classpath := "." + sep + strings.Join(p.Classpath, sep)

	argv := make([]string, 0, len(p.JavaArguments)+len(p.ProgramArguments)+3)
	argv = append(argv, p.JavaArguments...)
	argv = append(argv, "-cp", classpath, p.MainClass)
	argv = append(argv, p.ProgramArguments...)
	return argv
}

// Spawn resolves the JVM (via java_version if set, else PATH) and starts it
// detached in cwd. The parent's exit code does not reflect the JVM's
// (§4.8 step 3): Spawn returns once the process has started, not exited.
func (p *Plan) Spawn(cwd string) (*os.Process, error) {
	javaBin := javahome.Resolve(p.JavaVersion)

	cmd := exec.Command(javaBin, p.Argv()...)
	cmd.Dir = cwd
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, &lerr.SpawnError{Err: err}
	}
	return cmd.Process, nil
}
