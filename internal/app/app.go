// Package app wires together the HTTP server, the WebSocket hub, the
// recorder and the recording store. It owns the daemon's lifecycle and is
// the single source of truth for the current operating state.
package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/large-farva/voicememo/internal/config"
	"github.com/large-farva/voicememo/internal/device"
	"github.com/large-farva/voicememo/internal/events"
	"github.com/large-farva/voicememo/internal/observe"
	"github.com/large-farva/voicememo/internal/recorder"
	"github.com/large-farva/voicememo/internal/session"
	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/wav"
)

const heartbeatInterval = 10 * time.Second

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	Device device.Device
	Store  storage.Catalog

	// Provider is optional; nil disables /metrics and request metrics.
	Provider *observe.Provider
}

// App is the top-level daemon process.
type App struct {
	log        *log.Logger
	cfg        config.Config
	configPath string
	bind       string

	dev      device.Device
	store    storage.Catalog
	provider *observe.Provider
	metrics  session.Metrics

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, CAPTURING, ...)

	hub      *events.Hub
	recorder *recorder.Runner

	// info caches parsed headers keyed by name, size and mtime.
	info *lru.Cache[string, wav.Info]

	lastSaved atomic.Pointer[session.Result]
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) (*App, error) {
	size := opts.Cfg.Server.InfoCacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, wav.Info](size)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}

	a := &App{
		log:        logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		dev:        opts.Device,
		store:      opts.Store,
		provider:   opts.Provider,
		startedAt:  time.Now(),
		hub:        events.NewHub(),
		info:       cache,
	}
	a.state.Store("BOOTING")

	ropts := recorder.Options{
		MaxDuration: opts.Cfg.Recorder.MaxDuration(),
		FilePrefix:  opts.Cfg.Recorder.FilePrefix,
		Tick:        opts.Cfg.Recorder.Tick(),
		OnSaved: func(r session.Result) {
			a.lastSaved.Store(&r)
		},
	}
	if a.provider != nil {
		m := a.provider.Metrics
		a.metrics = m
		ropts.Metrics = m
		ropts.OnActive = func(delta int64) {
			m.ActiveCaptures.Add(context.Background(), delta)
		}
	}
	a.recorder = recorder.New(a.hub, a.log, a.dev, a.store, ropts)
	return a, nil
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker and recorder.
// It blocks until the context is cancelled or any of them fails.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8090"
	}

	server := &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Printf("listening on http://%s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error { return a.recorder.Run(gctx, a.transition) })
	g.Go(func() error {
		a.heartbeatLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Printf("shutdown requested")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutCtx)
	})
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

// Handler returns the full route table wrapped in request metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	mux.HandleFunc("GET /api/config", a.handleConfig)

	mux.HandleFunc("POST /api/record/start", a.handleRecordStart)
	mux.HandleFunc("POST /api/record/stop", a.handleRecordStop)
	mux.HandleFunc("POST /api/record/cancel", a.handleRecordCancel)

	mux.HandleFunc("GET /api/recordings", a.handleRecordings)
	mux.HandleFunc("GET /api/recordings/{name}", a.handleRecording)
	mux.HandleFunc("GET /api/recordings/{name}/wav", a.handleRecordingWAV)
	mux.HandleFunc("DELETE /api/recordings/{name}", a.handleDeleteRecording)

	mux.Handle("GET /ws", a.hub.Handler())

	if a.provider == nil {
		return mux
	}
	path := a.cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle("GET "+path, a.provider.Handler)
	return observe.Middleware(a.provider.Metrics)(mux)
}

// State reports the daemon's current state.
func (a *App) State() string {
	return a.state.Load().(string)
}

// transition updates the daemon state and broadcasts the change.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.hub.Publish(events.NewStateTransition("", old, newState))
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, recording := a.recorder.Snapshot()
			a.hub.Publish(events.NewHeartbeat(a.State(), time.Since(a.startedAt), recording))
		}
	}
}
