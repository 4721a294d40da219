package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Storage       string `json:"storage"`
	DataRoot      string `json:"data_root"`
	Device        struct {
		Kind       string `json:"kind"`
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"device"`
	MaxSeconds float64 `json:"max_seconds"`
	WSClients  int     `json:"ws_clients"`
	Capture    *struct {
		Session        string  `json:"session"`
		Path           string  `json:"path"`
		State          string  `json:"state"`
		ElapsedSeconds float64 `json:"elapsed_seconds"`
		MaxSeconds     float64 `json:"max_seconds"`
	} `json:"capture"`
	LastRecording *savedResult `json:"last_recording"`
	Disk          *struct {
		TotalBytes     int64 `json:"total_bytes"`
		UsedBytes      int64 `json:"used_bytes"`
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  VOICEMEMO STATUS"))
	fmt.Fprintln(out, rule(38))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(out, "  %-12s %s (%d Hz, %d ch)\n", colorize(dim, "Device:"), s.Device.Kind, s.Device.SampleRate, s.Device.Channels)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Storage:"), s.Storage)
	if s.DataRoot != "" {
		fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	}
	if s.Disk != nil && s.Disk.TotalBytes > 0 {
		fmt.Fprintf(out, "  %-12s %s free of %s\n", colorize(dim, "Disk:"),
			formatBytes(s.Disk.AvailableBytes), formatBytes(s.Disk.TotalBytes))
	}
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Max clip:"), formatSeconds(s.MaxSeconds))
	fmt.Fprintf(out, "  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Host:"), baseURL)

	if c := s.Capture; c != nil {
		pct := 0
		if c.MaxSeconds > 0 {
			pct = int(100 * c.ElapsedSeconds / c.MaxSeconds)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, header("  CAPTURE"))
		fmt.Fprintln(out, rule(38))
		fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Session:"), c.Session)
		fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "File:"), c.Path)
		fmt.Fprintf(out, "  %-12s [%s] %s / %s\n", colorize(dim, "Elapsed:"),
			progressBar(pct, 20), formatSeconds(c.ElapsedSeconds), formatSeconds(c.MaxSeconds))
	}
	if r := s.LastRecording; r != nil {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %-12s %s (%s)\n", colorize(dim, "Last saved:"), r.Path, formatSeconds(r.seconds()))
	}
	fmt.Fprintln(out)

	return nil
}
