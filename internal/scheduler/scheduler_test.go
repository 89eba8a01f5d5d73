package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tanq16/fget/internal/output"
	"github.com/tanq16/fget/internal/utils"
)

func newRangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		var start, end int64
		if _, err := fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end); err != nil {
			w.Write(data)
			return
		}
		end = min(end, int64(len(data))-1)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunDownloadsAllJobs(t *testing.T) {
	data := bytes.Repeat([]byte("fget"), 25000)
	srv := newRangeServer(t, data)
	dir := t.TempDir()
	jobs := []utils.FgetJob{
		{ID: "1", URL: srv.URL + "/a.bin", Dir: dir, Connections: 4},
		{ID: "2", URL: srv.URL + "/b.bin", Dir: dir, Connections: 2},
		{ID: "3", URL: srv.URL + "/c.bin", Dir: dir, OutputPath: filepath.Join("nested", "c.out")},
	}
	var buf bytes.Buffer
	err := run(t.Context(), jobs, 2, output.NewManagerWithWriter(&buf, false), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"a.bin", "b.bin", filepath.Join("nested", "c.out")} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%s content mismatch", name)
		}
	}
	if !strings.Contains(buf.String(), "Completed 3 of 3") {
		t.Errorf("summary missing:\n%s", buf.String())
	}
}

func TestRunAggregatesFailures(t *testing.T) {
	srv := newRangeServer(t, []byte("hello world"))
	dir := t.TempDir()
	jobs := []utils.FgetJob{
		{ID: "ok", URL: srv.URL + "/ok.txt", Dir: dir},
		{ID: "bad", URL: srv.URL + "/missing", Dir: dir},
	}
	var buf bytes.Buffer
	err := run(t.Context(), jobs, 1, output.NewManagerWithWriter(&buf, false), 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	if !strings.Contains(err.Error(), "/missing") {
		t.Errorf("error should name the failed URL: %v", err)
	}
	if !strings.Contains(buf.String(), "Failed 1 of 2") {
		t.Errorf("summary missing failure count:\n%s", buf.String())
	}
}

func TestRunCancelledContext(t *testing.T) {
	srv := newRangeServer(t, []byte("data"))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	var buf bytes.Buffer
	jobs := []utils.FgetJob{{ID: "1", URL: srv.URL + "/x", Dir: t.TempDir()}}
	if err := run(ctx, jobs, 1, output.NewManagerWithWriter(&buf, false), 10*time.Millisecond); err != nil {
		t.Errorf("cancelled jobs are not failures, got %v", err)
	}
	if !strings.Contains(buf.String(), "Cancelled 1 of 1") {
		t.Errorf("summary missing cancel count:\n%s", buf.String())
	}
}
