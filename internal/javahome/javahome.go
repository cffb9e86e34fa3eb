// Package javahome resolves a JVM binary matching a requested major version
// by scanning the known JDK install roots (C8 step 1).
package javahome

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// searchRootsFn lists the JDK parent directories to scan: /lib/jvm and
// /usr/lib/jvm on every OS (on a host without them, nothing matches).
// Overridable by tests.
var searchRootsFn = func() []string {
	return []string{"/lib/jvm", "/usr/lib/jvm"}
}

// candidate is one discovered JDK, with a semver-comparable version so that
// when more than one installation matches a requested major version, the
// resolver can prefer the newest.
type candidate struct {
	javaBin string
	version *semver.Version
}

// Resolve returns the path to a `java` binary matching wantedMajor, or
// "java" (resolved from PATH at spawn time) if wantedMajor is 0 (unset) or
// no installation matches.
func Resolve(wantedMajor int) string {
	if wantedMajor == 0 {
		return "java"
	}

	var matches []candidate
	for _, root := range searchRootsFn() {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			version, err := readReleaseVersion(dir)
			if err != nil {
				continue
			}
			if int(version.Major()) != wantedMajor && !isLegacyMatch(version, wantedMajor) {
				continue
			}
			matches = append(matches, candidate{
				javaBin: filepath.Join(dir, "bin", "java"),
				version: version,
			})
		}
	}

	if len(matches) == 0 {
		return "java"
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.version.GreaterThan(best.version) {
			best = m
		}
	}
	return best.javaBin
}

// isLegacyMatch handles the "1.x" legacy version prefix (Java 8 reports
// JAVA_VERSION="1.8.0_XXX"; its effective major version is 8).
func isLegacyMatch(v *semver.Version, wantedMajor int) bool {
	return v.Major() == 1 && int(v.Minor()) == wantedMajor
}

// readReleaseVersion parses the JAVA_VERSION="..." line out of dir/release,
// the format the JDK itself writes.
func readReleaseVersion(dir string) (*semver.Version, error) {
	data, err := os.ReadFile(filepath.Join(dir, "release"))
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "JAVA_VERSION=") {
			continue
		}
		raw := strings.Trim(strings.TrimPrefix(line, "JAVA_VERSION="), `"`)
		return parseLooseSemver(raw)
	}
	return nil, fmt.Errorf("no JAVA_VERSION line in %s/release", dir)
}

// parseLooseSemver coerces JDK version strings like "21.0.2" or
// "1.8.0_392" (underscore update suffix, non-semver) into a semver.Version.
func parseLooseSemver(raw string) (*semver.Version, error) {
	raw = strings.ReplaceAll(raw, "_", "+")
	if v, err := semver.NewVersion(raw); err == nil {
		return v, nil
	}
	parts := strings.SplitN(raw, "+", 2)
	return semver.NewVersion(parts[0])
}
