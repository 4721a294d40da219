package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/voicememo/internal/config"
	"github.com/large-farva/voicememo/internal/events"
	"github.com/large-farva/voicememo/internal/recorder"
	"github.com/large-farva/voicememo/internal/session"
	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/wav"
)

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{}
	allOK := true

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if objs, err := a.store.List(ctx); err != nil {
		checks["storage"] = map[string]any{"ok": false, "backend": a.cfg.Storage.Backend, "error": err.Error()}
		allOK = false
	} else {
		checks["storage"] = map[string]any{"ok": true, "backend": a.cfg.Storage.Backend, "objects": len(objs)}
	}

	if f := a.dev.Format(); f.SampleRate <= 0 || f.Channels <= 0 {
		checks["device"] = map[string]any{"ok": false, "error": fmt.Sprintf("bad format %d Hz x %d", f.SampleRate, f.Channels)}
		allOK = false
	} else {
		checks["device"] = map[string]any{"ok": true, "kind": a.cfg.Device.Kind}
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	f := a.dev.Format()
	resp := map[string]any{
		"name":           "voicememo",
		"state":          a.State(),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"storage":        a.cfg.Storage.Backend,
		"device": map[string]any{
			"kind":        a.cfg.Device.Kind,
			"sample_rate": f.SampleRate,
			"channels":    f.Channels,
		},
		"max_seconds":      a.cfg.Recorder.MaxSeconds,
		"ws_clients":       a.hub.Clients(),
		"events_dropped":   a.hub.Dropped(),
		"go_version":       runtime.Version(),
		"min_load_seconds": a.cfg.Recorder.MinLoadSeconds,
	}

	if snap, ok := a.recorder.Snapshot(); ok {
		resp["capture"] = snap
	}
	if last := a.lastSaved.Load(); last != nil {
		resp["last_recording"] = last
	}

	if a.cfg.Storage.Backend == config.BackendDir {
		resp["data_root"] = a.cfg.Data.Root
		if du := diskUsage(a.cfg.Data.Root); du != nil {
			resp["disk"] = du
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg)
}

// ---------------------------------------------------------------------------
// Recording control
// ---------------------------------------------------------------------------

func (a *App) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	var req recorder.StartRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	a.sendRecorderCommand(w, r, recorder.CmdStart, req)
}

func (a *App) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	a.sendRecorderCommand(w, r, recorder.CmdStop, nil)
}

func (a *App) handleRecordCancel(w http.ResponseWriter, r *http.Request) {
	a.sendRecorderCommand(w, r, recorder.CmdCancel, nil)
}

// ---------------------------------------------------------------------------
// Recordings
// ---------------------------------------------------------------------------

type recordingInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Info     *wav.Info `json:"info,omitempty"`
	Seconds  float64   `json:"duration_seconds,omitempty"`
	Error    string    `json:"error,omitempty"`
	Loadable bool      `json:"loadable"`
}

func (a *App) handleRecordings(w http.ResponseWriter, r *http.Request) {
	objs, err := a.store.List(r.Context())
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	minLoad := a.cfg.Recorder.MinLoadDuration()
	recs := make([]recordingInfo, 0, len(objs))
	for _, o := range objs {
		if !strings.EqualFold(path.Ext(o.Name), ".wav") {
			continue
		}
		ri := recordingInfo{Name: o.Name, Size: o.Size, ModTime: o.ModTime}
		info, err := a.inspect(r.Context(), o)
		if err != nil {
			ri.Error = err.Error()
		} else {
			ri.Info = &info
			ri.Seconds = info.Duration.Seconds()
			ri.Loadable = info.Duration >= minLoad
		}
		recs = append(recs, ri)
	}

	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

// inspect returns the header metadata for o, reading it through the cache.
func (a *App) inspect(ctx context.Context, o storage.Object) (wav.Info, error) {
	key := cacheKey(o.Name, o.Size, o.ModTime)
	if info, ok := a.info.Get(key); ok {
		return info, nil
	}
	data, err := a.store.ReadBytes(ctx, o.Name)
	if err != nil {
		return wav.Info{}, err
	}
	info, err := wav.Inspect(data)
	if err != nil {
		return wav.Info{}, err
	}
	a.info.Add(key, info)
	return info, nil
}

func (a *App) handleRecording(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	l := session.NewLoad(a.store, session.LoadOptions{
		MinDuration: a.cfg.Recorder.MinLoadDuration(),
		Logger:      a.log,
		Metrics:     a.metrics,
	})
	buf, err := l.Load(r.Context(), name)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":             name,
		"session":          l.ID,
		"state":            l.State(),
		"sample_rate":      buf.SampleRate,
		"channels":         buf.Channels,
		"frames":           buf.Frames(),
		"samples":          len(buf.Samples),
		"duration_seconds": buf.Duration().Seconds(),
		"peak":             buf.Peak(),
	})
}

func (a *App) handleRecordingWAV(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := a.store.ReadBytes(r.Context(), name)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := a.store.Delete(r.Context(), name); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	prefix := name + "|"
	for _, k := range a.info.Keys() {
		if strings.HasPrefix(k, prefix) {
			a.info.Remove(k)
		}
	}
	a.hub.Publish(events.NewRecordingDeleted(name))
	a.log.Printf("deleted recording %s", name)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "deleted " + name})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendRecorderCommand forwards a command to the recorder and writes its
// reply. The request context bounds the wait.
func (a *App) sendRecorderCommand(w http.ResponseWriter, r *http.Request, typ string, payload any) {
	result, err := a.recorder.Send(r.Context(), typ, payload)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeCommandResult(w, result)
}

// statusFor maps domain errors to HTTP status codes. NotFound is checked
// before the generic storage failure it is wrapped in.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidPath),
		errors.Is(err, recorder.ErrInvalidRequest),
		errors.Is(err, recorder.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrCaptureActive),
		errors.Is(err, recorder.ErrNoCapture):
		return http.StatusConflict
	case errors.Is(err, session.ErrLoadTooShort),
		errors.Is(err, wav.ErrMalformedHeader),
		errors.Is(err, wav.ErrUnsupportedFormat),
		errors.Is(err, wav.ErrTruncatedFile):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func cacheKey(name string, size int64, mod time.Time) string {
	return name + "|" + strconv.FormatInt(size, 10) + "|" + strconv.FormatInt(mod.UnixNano(), 10)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a recorder.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result recorder.CommandResult) {
	code := http.StatusOK
	if !result.OK {
		code = statusFor(result.Err)
	}
	writeJSON(w, code, result)
}
