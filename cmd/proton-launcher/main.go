// Command proton-launcher is the thin CLI surface over the launcher core:
// it fetches an installation's descriptor chain, authenticates the player,
// runs its install scripts, runs its launch scripts, and spawns the JVM.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/protonlauncher/launcher/internal/asset"
	"github.com/protonlauncher/launcher/internal/auth"
	"github.com/protonlauncher/launcher/internal/cli"
	"github.com/protonlauncher/launcher/internal/config"
	"github.com/protonlauncher/launcher/internal/download"
	"github.com/protonlauncher/launcher/internal/installation"
	"github.com/protonlauncher/launcher/internal/launch"
	"github.com/protonlauncher/launcher/internal/script"
)

func main() {
	report := cli.Reporter{}

	if len(os.Args) < 3 || os.Args[1] != "launch" {
		fmt.Fprintln(os.Stderr, "usage: proton-launcher launch <installation-id> [authorization-code]")
		os.Exit(1)
	}
	installationID := os.Args[2]

	if err := run(installationID, os.Args[3:], report); err != nil {
		report.Error(err)
		os.Exit(1)
	}
}

func run(installationID string, extra []string, report cli.Reporter) error {
	ctx := context.Background()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	root := filepath.Join(home, ".proton-launcher")
	filesRoot := filepath.Join(root, "installation", "files")
	runtimeDir := filepath.Join(root, "runtime", installationID)
	if err := os.MkdirAll(runtimeDir, 0o755); err != nil {
		return fmt.Errorf("preparing runtime directory: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	report.Stage("fetching installation descriptor chain")
	fetcher := asset.NewFetcher(filesRoot)
	if err := fetcher.Fetch(ctx, installationID); err != nil {
		return err
	}

	profile, err := authenticate(ctx, root, extra, report)
	if err != nil {
		return err
	}

	substMap := map[string]string{
		"access_token": profile.AccessToken,
		"uuid":         profile.UUID,
		"username":     profile.Username,
	}
	node, err := installation.Parse(filesRoot, installationID, substMap)
	if err != nil {
		return err
	}

	pool := download.NewPool()
	host := script.NewHost(filesRoot, pool, settings.All())

	report.Stage("running install scripts")
	if err := host.RunInstall(ctx, node); err != nil {
		return err
	}
	for _, taskErr := range pool.Errors() {
		report.Warn("%v", taskErr)
	}

	report.Stage("running launch scripts")
	outputs, err := host.RunLaunch(ctx, node, runtimeDir)
	if err != nil {
		return err
	}

	plan, err := launch.Build(outputs, runtimeDir, launch.RunArguments{
		AccessToken: profile.AccessToken,
		UUID:        profile.UUID,
		Username:    profile.Username,
	})
	if err != nil {
		return err
	}

	report.Stage("spawning JVM")
	if _, err := plan.Spawn(runtimeDir); err != nil {
		return err
	}

	report.Success("%s launched", installationID)
	return nil
}

// authenticate returns the saved profile if its access token still
// validates, refreshes it if not, and exchanges a freshly supplied
// authorization code when no profile is saved or the refresh fails
// (§4.2's black-box consent flow hands us the code already).
func authenticate(ctx context.Context, root string, extra []string, report cli.Reporter) (*auth.Profile, error) {
	client := auth.NewClient()

	profile, err := auth.LoadProfile(root)
	if err == nil && client.Validate(ctx, profile.AccessToken) {
		return profile, nil
	}
	if err == nil {
		report.Stage("refreshing access token")
		refreshed, rerr := client.Refresh(ctx, profile)
		if rerr == nil {
			if serr := auth.SaveProfile(root, refreshed); serr != nil {
				return nil, serr
			}
			return refreshed, nil
		}
	}

	if len(extra) == 0 {
		return nil, fmt.Errorf("no valid session and no authorization code supplied")
	}
	report.Stage("authenticating")
	fresh, err := client.Authenticate(ctx, extra[0])
	if err != nil {
		return nil, err
	}
	if err := auth.SaveProfile(root, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
