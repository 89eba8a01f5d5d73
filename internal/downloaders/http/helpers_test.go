package fgethttp

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testServer struct {
	*httptest.Server
	data []byte

	noRanges    bool
	fragment    int
	delay       time.Duration
	failOffset  int64 // ranged requests starting here fail; -1 disables
	failStatus  int   // status to fail with; 0 cuts the stream halfway instead
	failOnce    bool
	rangeShift  int64 // ranged responses start this many bytes past the requested offset
	failed      atomic.Bool
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu          sync.Mutex
	userAgents  []string
	rangeStarts []int64
}

func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newTestServer(t *testing.T, data []byte, configure func(*testServer)) *testServer {
	t.Helper()
	ts := &testServer{data: data, fragment: 16 * 1024, failOffset: -1}
	if configure != nil {
		configure(ts)
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) handle(w http.ResponseWriter, r *http.Request) {
	// The counter drops before the last fragment goes out, so a client that reacts
	// to a finished body never sees its own previous request as still in flight.
	release := func() {}
	if r.Header.Get("Range") != "bytes=0-1" {
		current := ts.inFlight.Add(1)
		release = sync.OnceFunc(func() { ts.inFlight.Add(-1) })
		for {
			seen := ts.maxInFlight.Load()
			if current <= seen || ts.maxInFlight.CompareAndSwap(seen, current) {
				break
			}
		}
	}
	defer release()
	if strings.HasSuffix(r.URL.Path, "/missing") {
		http.NotFound(w, r)
		return
	}

	rangeHeader := r.Header.Get("Range")
	ts.mu.Lock()
	ts.userAgents = append(ts.userAgents, r.Header.Get("User-Agent"))
	ts.mu.Unlock()

	size := int64(len(ts.data))
	if ts.noRanges || rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		ts.writeSlow(w, ts.data, release)
		return
	}

	var start, end int64
	if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	if end >= size {
		end = size - 1
	}
	if start != 0 || end != 1 {
		ts.mu.Lock()
		ts.rangeStarts = append(ts.rangeStarts, start)
		ts.mu.Unlock()
		start = min(start+ts.rangeShift, end)
	}

	payload := ts.data[start : end+1]
	if start == ts.failOffset && !(ts.failOnce && ts.failed.Load()) {
		ts.failed.Store(true)
		if ts.failStatus != 0 {
			http.Error(w, "boom", ts.failStatus)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		ts.writeSlow(w, payload[:len(payload)/2], release)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusPartialContent)
	ts.writeSlow(w, payload, release)
}

func (ts *testServer) writeSlow(w http.ResponseWriter, data []byte, beforeLast func()) {
	flusher, _ := w.(http.Flusher)
	for len(data) > 0 {
		n := min(ts.fragment, len(data))
		if n == len(data) {
			beforeLast()
		}
		if _, err := w.Write(data[:n]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		data = data[n:]
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}
	}
}

func (ts *testServer) RangeStarts() []int64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]int64(nil), ts.rangeStarts...)
}

func (ts *testServer) UserAgents() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.userAgents...)
}

type callbackResult struct {
	outcome Outcome
	err     error
}

func startDownload(t *testing.T, engine *Engine, opts Options) <-chan callbackResult {
	t.Helper()
	resCh := make(chan callbackResult, 1)
	err := engine.Get(t.Context(), opts, func(outcome Outcome, err error) {
		resCh <- callbackResult{outcome, err}
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return resCh
}

func waitResult(t *testing.T, resCh <-chan callbackResult) callbackResult {
	t.Helper()
	select {
	case res := <-resCh:
		return res
	case <-time.After(20 * time.Second):
		t.Fatal("timed out waiting for the completion callback")
	}
	return callbackResult{}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	engine := NewEngine()
	engine.Dir = dir
	return engine, dir
}

func readFile(t *testing.T, path ...string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(path...))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}
