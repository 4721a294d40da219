// Voicememod is the voice memo recording daemon.
//
// It loads configuration, opens the capture device and the recording store,
// and serves the HTTP/WebSocket API until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/large-farva/voicememo/internal/app"
	"github.com/large-farva/voicememo/internal/config"
	"github.com/large-farva/voicememo/internal/device"
	"github.com/large-farva/voicememo/internal/observe"
	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/wav"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/voicememo/voicememo.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) && !pflag.CommandLine.Changed("config") {
		cfg, err = config.Default(), nil
		*configPath = ""
	}
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	w, closeLog := logWriter(cfg.Logging)
	defer closeLog()
	logger := log.New(w, "voicememod ", logFlags(cfg.Logging.Level))
	if *configPath == "" {
		logger.Printf("no config file, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	var provider *observe.Provider
	if cfg.Metrics.Enabled {
		provider, err = observe.InitProvider(observe.ProviderConfig{ServiceVersion: app.Version})
		if err != nil {
			logger.Fatalf("metrics: %v", err)
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutCtx)
		}()
	}

	a, err := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		Device:     newDevice(cfg.Device),
		Store:      store,
		Provider:   provider,
	})
	if err != nil {
		logger.Fatalf("init: %v", err)
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("voicememod failed: %v", err)
		closeLog()
		os.Exit(1)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}

// logWriter returns stdout, teed into a rotating file when logging.file is
// set. The returned func closes the file.
func logWriter(cfg config.LoggingConfig) (io.Writer, func()) {
	if cfg.File == "" {
		return os.Stdout, func() {}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, lj), func() { _ = lj.Close() }
}

func logFlags(level string) int {
	flags := log.LstdFlags | log.Lmicroseconds
	if level == "debug" {
		flags |= log.Lshortfile
	}
	return flags
}

func newDevice(cfg config.DeviceConfig) device.Device {
	// Tone is the only kind config.validate accepts.
	return device.NewTone(device.ToneOptions{
		Format:    wav.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		Frequency: cfg.ToneHz,
		Amplitude: cfg.Amplitude,
	})
}

func newStore(ctx context.Context, cfg config.Config) (storage.Catalog, error) {
	switch cfg.Storage.Backend {
	case config.BackendDir, "":
		return storage.NewDir(cfg.Data.Root), nil
	case config.BackendS3:
		s3 := cfg.Storage.S3
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:          s3.Bucket,
			Prefix:          s3.Prefix,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			PathStyle:       s3.PathStyle,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Storage.Backend)
	}
}
