// Package download implements the bounded parallel download pool (C6) that
// backs the script host's download() builtin.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/protonlauncher/launcher/internal/lerr"
)

// Ceiling is the fixed pool size mandated by §4.6 (N=10, documented here as
// the single tuning knob).
const Ceiling = 10

// Task is one fetch-and-write unit submitted to the pool.
type Task struct {
	URL  string
	Dest string
}

// Progress is a snapshot of in-flight pool activity.
type Progress struct {
	TotalBytes      int64
	DownloadedBytes int64
	TotalItems      int
	CompletedItems  int
	FailedItems     int
	Speed           float64 // bytes/sec
}

// Pool is a bounded-concurrency worker pool over HTTP downloads. Submitting
// more than Ceiling tasks queues the rest; Drain blocks until every
// submitted task, in flight or queued, has finished.
type Pool struct {
	httpClient *http.Client

	mu       sync.Mutex
	wg       sync.WaitGroup
	sem      chan struct{}
	inFlight int64

	downloaded int64
	completed  int64
	failed     int64

	errMu  sync.Mutex
	errors []error
}

// NewPool builds a Pool whose HTTP client retries transient failures the
// same way the asset fetcher and auth client do.
func NewPool() *Pool {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient.Transport = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: Ceiling,
		IdleConnTimeout:     90 * time.Second,
	}
	retryClient.HTTPClient.Timeout = 5 * time.Minute

	return &Pool{
		httpClient: retryClient.StandardClient(),
		sem:        make(chan struct{}, Ceiling),
	}
}

// Submit enqueues a download. It returns immediately; the task runs once a
// worker slot is free. Per §4.6, task failures are logged (collected into
// Errors()) but never abort the pool or the caller.
func (p *Pool) Submit(ctx context.Context, task Task) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-p.sem }()

		atomic.AddInt64(&p.inFlight, 1)
		defer atomic.AddInt64(&p.inFlight, -1)

		if err := p.fetch(ctx, task); err != nil {
			atomic.AddInt64(&p.failed, 1)
			p.errMu.Lock()
			p.errors = append(p.errors, fmt.Errorf("%s: %w", task.URL, err))
			p.errMu.Unlock()
			return
		}
		atomic.AddInt64(&p.completed, 1)
	}()
}

// SubmitBlocking runs task synchronously, bypassing the queue, for the
// script host's single_thread=true download() calls.
func (p *Pool) SubmitBlocking(ctx context.Context, task Task) error {
	atomic.AddInt64(&p.inFlight, 1)
	defer atomic.AddInt64(&p.inFlight, -1)
	return p.fetch(ctx, task)
}

// Drain blocks until all submitted tasks (in flight and queued) complete.
// This is the pool-drain barrier §5 requires between one descriptor's
// script and the next.
func (p *Pool) Drain() {
	p.wg.Wait()
}

// InFlight reports how many downloads are currently running, for the pool
// ceiling property in §8.
func (p *Pool) InFlight() int64 { return atomic.LoadInt64(&p.inFlight) }

// Errors returns the accumulated per-task failures observed so far.
func (p *Pool) Errors() []error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	out := make([]error, len(p.errors))
	copy(out, p.errors)
	return out
}

// Progress reports a point-in-time snapshot, for a caller driving a status
// line the way the teacher's Manager.Download progress channel does.
func (p *Pool) Progress() Progress {
	return Progress{
		DownloadedBytes: atomic.LoadInt64(&p.downloaded),
		CompletedItems:  int(atomic.LoadInt64(&p.completed)),
		FailedItems:     int(atomic.LoadInt64(&p.failed)),
	}
}

// FormatSpeed renders bytes/sec the way the teacher's download manager does.
func FormatSpeed(bytesPerSec float64) string {
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}

func (p *Pool) fetch(ctx context.Context, task Task) error {
	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return &lerr.FilesystemError{Op: "mkdir", Path: filepath.Dir(task.Dest), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &lerr.NetworkError{Stage: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &lerr.NetworkError{Stage: "download", Err: fmt.Errorf("unexpected status %d for %s", resp.StatusCode, task.URL)}
	}

	tmp := task.Dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &lerr.FilesystemError{Op: "create", Path: tmp, Err: err}
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return &lerr.FilesystemError{Op: "write", Path: tmp, Err: err}
	}
	atomic.AddInt64(&p.downloaded, n)

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &lerr.FilesystemError{Op: "close", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, task.Dest); err != nil {
		os.Remove(tmp)
		return &lerr.FilesystemError{Op: "rename", Path: task.Dest, Err: err}
	}
	return nil
}
