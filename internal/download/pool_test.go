package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_SingleFile(t *testing.T) {
	content := []byte("Hello, World!")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	dest := filepath.Join(tmpDir, "test.txt")

	p := NewPool()
	p.Submit(context.Background(), Task{URL: server.URL, Dest: dest})
	p.Drain()

	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", data, content)
	}
}

func TestPool_BackpressureCeiling(t *testing.T) {
	var maxConcurrent int64
	var current int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&current, 1)
		defer atomic.AddInt64(&current, -1)
		for {
			old := atomic.LoadInt64(&maxConcurrent)
			if n <= old || atomic.CompareAndSwapInt64(&maxConcurrent, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	p := NewPool()

	const taskCount = 25
	for i := 0; i < taskCount; i++ {
		p.Submit(context.Background(), Task{
			URL:  server.URL,
			Dest: filepath.Join(tmpDir, fmt.Sprintf("file-%d.txt", i)),
		})
	}
	p.Drain()

	if got := atomic.LoadInt64(&maxConcurrent); got > Ceiling {
		t.Errorf("observed %d concurrent downloads, want <= %d", got, Ceiling)
	}
	if len(p.Errors()) != 0 {
		t.Errorf("unexpected errors: %v", p.Errors())
	}
}

func TestPool_TaskFailureDoesNotAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	p := NewPool()
	p.Submit(context.Background(), Task{URL: server.URL + "/fail", Dest: filepath.Join(tmpDir, "a.txt")})
	p.Submit(context.Background(), Task{URL: server.URL + "/ok", Dest: filepath.Join(tmpDir, "b.txt")})
	p.Drain()

	if len(p.Errors()) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(p.Errors()), p.Errors())
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "b.txt")); err != nil {
		t.Errorf("sibling task should still have completed: %v", err)
	}
}
