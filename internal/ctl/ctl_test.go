package ctl

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects command output into a buffer for the test's duration.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })
	return &buf
}

type fakeDaemon struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeDaemon) record(r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.EscapedPath())
	f.mu.Unlock()
}

func (f *fakeDaemon) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

const savedJSON = `{"ok":true,"message":"saved Audio_x.wav (1.5s)","session":"0b5e-1","path":"Audio_x.wav",
"result":{"id":"0b5e-1","path":"Audio_x.wav","trim":{"valid_samples":1500,"total_samples":3000},
"format":{"sample_rate":1000,"channels":1},"frames":1500,"duration_ns":1500000000,"bytes":3044}}`

func newFakeDaemon(t *testing.T) (*fakeDaemon, *httptest.Server) {
	t.Helper()
	f := &fakeDaemon{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"name": "voicememo", "state": "CAPTURING", "uptime_seconds": 3725,
			"storage": "dir", "data_root": "/tmp/memos", "max_seconds": 30,
			"device":  map[string]any{"kind": "tone", "sample_rate": 44100, "channels": 1},
			"capture": map[string]any{"session": "abc", "path": "Audio_x.wav", "state": "CAPTURING", "elapsed_seconds": 15, "max_seconds": 30},
		})
	})
	mux.HandleFunc("POST /api/record/start", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		body, _ := io.ReadAll(r.Body)
		if bytes.Contains(body, []byte(`"max_seconds":99`)) {
			writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "start: capture already active"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "capture started (max 30s)", "session": "0b5e-1", "path": "Audio_x.wav"})
	})
	mux.HandleFunc("POST /api/record/stop", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, savedJSON)
	})
	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"recordings": []map[string]any{
			{"name": "Audio_x.wav", "size": 3044, "mod_time": time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
				"info": map[string]any{"sample_rate": 1000, "channels": 1, "frames": 1500}, "duration_seconds": 1.5, "loadable": true},
			{"name": "blip.wav", "size": 60, "info": map[string]any{"sample_rate": 1000, "channels": 1, "frames": 8}, "duration_seconds": 0.008},
			{"name": "junk.wav", "size": 4, "error": "malformed wav header"},
		}})
	})
	mux.HandleFunc("GET /api/recordings/{name}/wav", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = io.WriteString(w, "RIFF....WAVE")
	})
	mux.HandleFunc("DELETE /api/recordings/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.PathValue("name") == "missing.wav" {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "object not found: missing.wav"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "deleted " + r.PathValue("name")})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"healthy": false, "checks": map[string]any{
			"storage": map[string]any{"ok": false, "error": "permission denied"},
			"device":  map[string]any{"ok": true},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestStatusRendersCapture(t *testing.T) {
	buf := capture(t)
	_, srv := newFakeDaemon(t)

	require.NoError(t, Status(srv.URL, false))
	s := buf.String()
	assert.Contains(t, s, "VOICEMEMO STATUS")
	assert.Contains(t, s, "CAPTURING")
	assert.Contains(t, s, "1h 2m 5s")
	assert.Contains(t, s, "tone (44100 Hz, 1 ch)")
	assert.Contains(t, s, "[==========          ] 15.000s / 30.000s")
}

func TestStatusJSON(t *testing.T) {
	buf := capture(t)
	_, srv := newFakeDaemon(t)

	require.NoError(t, Status(srv.URL, true))
	var s StatusResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &s))
	assert.Equal(t, "CAPTURING", s.State)
	require.NotNil(t, s.Capture)
	assert.Equal(t, "Audio_x.wav", s.Capture.Path)
}

func TestRecordForDurationStops(t *testing.T) {
	buf := capture(t)
	f, srv := newFakeDaemon(t)

	require.NoError(t, Record(srv.URL, RecordOptions{Duration: 0.01, Max: 5}))
	assert.Equal(t, []string{"POST /api/record/start", "POST /api/record/stop"}, f.seen())
	s := buf.String()
	assert.Contains(t, s, "SAVED")
	assert.Contains(t, s, "1500 of 3000 samples kept")
	assert.Contains(t, s, "1.500s")
}

func TestRecordWithoutDurationReturns(t *testing.T) {
	buf := capture(t)
	f, srv := newFakeDaemon(t)

	require.NoError(t, Record(srv.URL, RecordOptions{}))
	assert.Equal(t, []string{"POST /api/record/start"}, f.seen())
	assert.Contains(t, buf.String(), "Audio_x.wav")
}

func TestDaemonErrorMessageIsSurfaced(t *testing.T) {
	capture(t)
	_, srv := newFakeDaemon(t)

	err := Record(srv.URL, RecordOptions{Max: 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "capture already active")

	err = Delete(srv.URL, "missing.wav", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object not found: missing.wav")
}

func TestListTable(t *testing.T) {
	buf := capture(t)
	_, srv := newFakeDaemon(t)

	require.NoError(t, List(srv.URL, false))
	s := buf.String()
	assert.Contains(t, s, "RECORDINGS")
	assert.Contains(t, s, "Audio_x.wav")
	assert.Contains(t, s, "1000 Hz/1")
	assert.Contains(t, s, "too short")
	assert.Contains(t, s, "unreadable")
	assert.Contains(t, s, "3.0 KB")
}

func TestDownloadAndDelete(t *testing.T) {
	buf := capture(t)
	f, srv := newFakeDaemon(t)
	dest := filepath.Join(t.TempDir(), "out.wav")

	require.NoError(t, Download(srv.URL, "my memo.wav", dest, false))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(data))
	assert.Contains(t, buf.String(), "12 B")

	require.NoError(t, Delete(srv.URL, "my memo.wav", false))
	assert.Contains(t, buf.String(), "deleted my memo.wav")

	assert.Equal(t, []string{
		"GET /api/recordings/my%20memo.wav/wav",
		"DELETE /api/recordings/my%20memo.wav",
	}, f.seen())
}

func TestHealthReport(t *testing.T) {
	buf := capture(t)
	_, srv := newFakeDaemon(t)

	require.NoError(t, Health(srv.URL, false))
	s := buf.String()
	assert.Contains(t, s, "UNHEALTHY")
	assert.Contains(t, s, "permission denied")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("device")), bytes.Index(buf.Bytes(), []byte("storage")))
}

func TestRenderEvent(t *testing.T) {
	buf := capture(t)

	renderEvent([]byte(`{"type":"state","ts":"2026-10-18T09:00:00Z","session":"0b5e1c2a-aaaa","from":"CAPTURING","to":"TRIMMING"}`))
	renderEvent([]byte(`{"type":"recording_saved","ts":"2026-10-18T09:00:01Z","name":"Audio_x.wav","bytes":3044,"duration_seconds":1.5,"valid_samples":1500,"total_samples":3000}`))
	renderEvent([]byte(`{"type":"log","ts":"bad","level":"error","message":"capture failed","component":"recorder"}`))
	renderEvent([]byte(`not json`))

	s := buf.String()
	assert.Contains(t, s, "SESSION 0b5e1c2a  CAPTURING -> TRIMMING")
	assert.Contains(t, s, "SAVED  Audio_x.wav  1.500s, 3.0 KB, kept 1500/3000 samples")
	assert.Contains(t, s, "ERROR  [recorder] capture failed")
	assert.Contains(t, s, "not json")
}

func TestFormatHelpers(t *testing.T) {
	capture(t)

	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2h 14m 8s", formatDuration(2*time.Hour+14*time.Minute+8*time.Second))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 MB", formatBytes(3<<19))
	assert.Equal(t, "0.100s", formatSeconds(0.1))
	assert.Equal(t, "=====     ", progressBar(50, 10))
	assert.Equal(t, "==========", progressBar(150, 10))
	assert.Equal(t, "          ", progressBar(-5, 10))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "  ab", padLeft("ab", 4))
	assert.Equal(t, "", stateColor("IDLE"))
}

func TestTableAlignment(t *testing.T) {
	buf := capture(t)

	tb := newTable("  ", "Name", "Size")
	tb.alignRight(1)
	tb.row("a.wav", "1 B")
	tb.row("longer.wav", "10.0 KB")
	tb.flush()

	assert.Equal(t, "  Name           Size\n"+
		"  ───────────────────\n"+
		"  a.wav           1 B\n"+
		"  longer.wav  10.0 KB\n", buf.String())
}
