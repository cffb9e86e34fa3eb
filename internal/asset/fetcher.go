// Package asset implements the remote asset fetcher (C3): it downloads a
// descriptor's file manifest and every listed file, then recurses into the
// descriptor's declared parent.
package asset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/protonlauncher/launcher/internal/lerr"
)

// BaseURL is the root of the remote asset repository (§6 remote asset layout).
var BaseURL = "https://raw.githubusercontent.com/proton-launcher/asset/main/installation"

// Fetcher downloads installation descriptors into filesRoot
// (installation/files/<id>/...).
type Fetcher struct {
	httpClient *http.Client
	filesRoot  string
}

// NewFetcher builds a Fetcher rooted at filesRoot, the "installation/files"
// directory under the process cwd.
func NewFetcher(filesRoot string) *Fetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 30 * time.Second

	return &Fetcher{
		httpClient: retryClient.StandardClient(),
		filesRoot:  filesRoot,
	}
}

// Fetch downloads id's manifest and files, then recurses into its parent
// (read from the just-downloaded info.json). It is idempotent: re-fetching
// overwrites local copies. Per §9 open question 1, bytes are fetched and
// written as raw bytes (not decoded as UTF-8 text), unlike the original
// implementation's faithfully-preserved-but-flagged bug.
func (f *Fetcher) Fetch(ctx context.Context, id string) error {
	seen := map[string]bool{}
	return f.fetchChain(ctx, id, seen)
}

func (f *Fetcher) fetchChain(ctx context.Context, id string, seen map[string]bool) error {
	if seen[id] {
		return &lerr.ConfigError{Path: id, Err: fmt.Errorf("cycle detected while fetching installation chain at %q", id)}
	}
	seen[id] = true

	manifest, err := f.fetchManifest(ctx, id)
	if err != nil {
		return err
	}

	destDir := filepath.Join(f.filesRoot, id)
	for _, relpath := range manifest {
		if relpath == "" {
			continue
		}
		if err := f.fetchFile(ctx, id, relpath, filepath.Join(destDir, relpath)); err != nil {
			return err
		}
	}

	parentID, err := readParentID(filepath.Join(destDir, "info.json"))
	if err != nil {
		return err
	}
	if parentID == "" {
		return nil
	}
	return f.fetchChain(ctx, parentID, seen)
}

func (f *Fetcher) fetchManifest(ctx context.Context, id string) ([]string, error) {
	manifestURL := fmt.Sprintf("%s/%s/files", BaseURL, id)
	body, err := f.get(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (f *Fetcher) fetchFile(ctx context.Context, id, relpath, dest string) error {
	fileURL := fmt.Sprintf("%s/%s/%s", BaseURL, id, relpath)
	body, err := f.get(ctx, fileURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &lerr.FilesystemError{Op: "mkdir", Path: filepath.Dir(dest), Err: err}
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return &lerr.FilesystemError{Op: "write", Path: dest, Err: err}
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &lerr.NetworkError{Stage: "asset_fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &lerr.NetworkError{Stage: "asset_fetch", Err: fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &lerr.NetworkError{Stage: "asset_fetch", Err: err}
	}
	return body, nil
}
