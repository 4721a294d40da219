package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Data struct {
			Root string `json:"root"`
		} `json:"data"`
		Logging struct {
			Level string `json:"level"`
			File  string `json:"file"`
		} `json:"logging"`
		Server struct {
			Bind          string `json:"bind"`
			InfoCacheSize int    `json:"info_cache_size"`
		} `json:"server"`
		Recorder struct {
			MaxSeconds     float64 `json:"max_seconds"`
			FilePrefix     string  `json:"file_prefix"`
			MinLoadSeconds float64 `json:"min_load_seconds"`
			TickMillis     int     `json:"tick_ms"`
		} `json:"recorder"`
		Device struct {
			Kind       string  `json:"kind"`
			SampleRate int     `json:"sample_rate"`
			Channels   int     `json:"channels"`
			ToneHz     float64 `json:"tone_hz"`
			Amplitude  float64 `json:"amplitude"`
		} `json:"device"`
		Storage struct {
			Backend string `json:"backend"`
			S3      struct {
				Bucket   string `json:"bucket"`
				Prefix   string `json:"prefix"`
				Region   string `json:"region"`
				Endpoint string `json:"endpoint"`
			} `json:"s3"`
		} `json:"storage"`
		Metrics struct {
			Enabled bool   `json:"enabled"`
			Path    string `json:"path"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  DAEMON CONFIGURATION"))
	fmt.Fprintln(out, rule(50))

	section := func(name string) {
		fmt.Fprintf(out, "\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Fprintf(out, "    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("root", cfg.Data.Root)

	section("logging")
	field("level", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		field("file", cfg.Logging.File)
	}

	section("server")
	field("bind", cfg.Server.Bind)
	field("info_cache_size", cfg.Server.InfoCacheSize)

	section("recorder")
	field("max_seconds", cfg.Recorder.MaxSeconds)
	field("file_prefix", cfg.Recorder.FilePrefix)
	field("min_load_seconds", cfg.Recorder.MinLoadSeconds)
	field("tick_ms", cfg.Recorder.TickMillis)

	section("device")
	field("kind", cfg.Device.Kind)
	field("sample_rate", cfg.Device.SampleRate)
	field("channels", cfg.Device.Channels)
	field("tone_hz", cfg.Device.ToneHz)
	field("amplitude", cfg.Device.Amplitude)

	section("storage")
	field("backend", cfg.Storage.Backend)
	if cfg.Storage.Backend == "s3" {
		field("bucket", cfg.Storage.S3.Bucket)
		field("prefix", cfg.Storage.S3.Prefix)
		field("region", cfg.Storage.S3.Region)
		field("endpoint", cfg.Storage.S3.Endpoint)
	}

	section("metrics")
	field("enabled", cfg.Metrics.Enabled)
	field("path", cfg.Metrics.Path)

	fmt.Fprintln(out)

	return nil
}
