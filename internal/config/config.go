// Package config handles loading, defaulting, and validation of the voicememo
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/voicememo/internal/wav"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Recorder RecorderConfig `toml:"recorder" json:"recorder"`
	Device   DeviceConfig   `toml:"device"   json:"device"`
	Storage  StorageConfig  `toml:"storage"  json:"storage"`
	Metrics  MetricsConfig  `toml:"metrics"  json:"metrics"`
}

type DataConfig struct {
	Root string `toml:"root" json:"root"`
}

type LoggingConfig struct {
	Level      string `toml:"level"        json:"level"`
	File       string `toml:"file"         json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"  json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"  json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

type ServerConfig struct {
	Bind          string `toml:"bind"            json:"bind"`
	InfoCacheSize int    `toml:"info_cache_size" json:"info_cache_size"`
}

type RecorderConfig struct {
	MaxSeconds     float64 `toml:"max_seconds"      json:"max_seconds"`
	FilePrefix     string  `toml:"file_prefix"      json:"file_prefix"`
	MinLoadSeconds float64 `toml:"min_load_seconds" json:"min_load_seconds"`
	TickMillis     int     `toml:"tick_ms"          json:"tick_ms"`
}

// MaxDuration returns max_seconds as a duration.
func (r RecorderConfig) MaxDuration() time.Duration {
	return seconds(r.MaxSeconds)
}

// MinLoadDuration returns min_load_seconds as a duration.
func (r RecorderConfig) MinLoadDuration() time.Duration {
	return seconds(r.MinLoadSeconds)
}

// Tick returns tick_ms as a duration.
func (r RecorderConfig) Tick() time.Duration {
	return time.Duration(r.TickMillis) * time.Millisecond
}

type DeviceConfig struct {
	Kind       string  `toml:"kind"        json:"kind"`
	SampleRate int     `toml:"sample_rate" json:"sample_rate"`
	Channels   int     `toml:"channels"    json:"channels"`
	ToneHz     float64 `toml:"tone_hz"     json:"tone_hz"`
	Amplitude  float64 `toml:"amplitude"   json:"amplitude"`
}

type StorageConfig struct {
	Backend string   `toml:"backend" json:"backend"`
	S3      S3Config `toml:"s3"      json:"s3"`
}

type S3Config struct {
	Bucket          string `toml:"bucket"            json:"bucket"`
	Prefix          string `toml:"prefix"            json:"prefix"`
	Region          string `toml:"region"            json:"region"`
	Endpoint        string `toml:"endpoint"          json:"endpoint"`
	PathStyle       bool   `toml:"path_style"        json:"path_style"`
	AccessKeyID     string `toml:"access_key_id"     json:"-"`
	SecretAccessKey string `toml:"secret_access_key" json:"-"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path"    json:"path"`
}

const (
	DeviceTone = "tone"

	BackendDir = "dir"
	BackendS3  = "s3"
)

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "/var/lib/voicememo",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Bind:          "127.0.0.1:8090",
			InfoCacheSize: 256,
		},
		Recorder: RecorderConfig{
			MaxSeconds:     30,
			FilePrefix:     "Audio",
			MinLoadSeconds: 0.1,
			TickMillis:     50,
		},
		Device: DeviceConfig{
			Kind:       DeviceTone,
			SampleRate: 44100,
			Channels:   1,
			ToneHz:     440,
			Amplitude:  0.5,
		},
		Storage: StorageConfig{
			Backend: BackendDir,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Data.Root == "" && cfg.Storage.Backend == BackendDir {
		return errors.New("data.root must not be empty")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Server.InfoCacheSize < 1 {
		return errors.New("server.info_cache_size must be >= 1")
	}
	if cfg.Recorder.MaxSeconds <= 0 {
		return errors.New("recorder.max_seconds must be > 0")
	}
	if cfg.Recorder.MinLoadSeconds < 0 {
		return errors.New("recorder.min_load_seconds must be >= 0")
	}
	if cfg.Recorder.TickMillis < 1 {
		return errors.New("recorder.tick_ms must be >= 1")
	}
	if cfg.Recorder.FilePrefix == "" {
		return errors.New("recorder.file_prefix must not be empty")
	}
	if cfg.Device.Kind != DeviceTone {
		return fmt.Errorf("device.kind %q is not supported", cfg.Device.Kind)
	}
	if cfg.Device.SampleRate <= 0 {
		return errors.New("device.sample_rate must be > 0")
	}
	if cfg.Device.Channels < 1 || cfg.Device.Channels > 8 {
		return errors.New("device.channels must be between 1 and 8")
	}
	if cfg.Device.Amplitude <= 0 || cfg.Device.Amplitude > 1 {
		return errors.New("device.amplitude must be in (0, 1]")
	}
	ceiling := wav.MaxDuration(wav.Format{SampleRate: cfg.Device.SampleRate, Channels: cfg.Device.Channels})
	if cfg.Recorder.MaxSeconds > ceiling.Seconds() {
		return fmt.Errorf("recorder.max_seconds must be <= %.0f for %d Hz x %d", ceiling.Seconds(), cfg.Device.SampleRate, cfg.Device.Channels)
	}
	switch cfg.Storage.Backend {
	case BackendDir:
	case BackendS3:
		if cfg.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket must not be empty")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendDir, BackendS3, cfg.Storage.Backend)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		return errors.New("metrics.path must not be empty")
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
