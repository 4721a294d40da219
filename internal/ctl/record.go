package ctl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// RecordOptions configures the record command.
type RecordOptions struct {
	// Duration, when positive, stops the capture after that many seconds.
	// Zero starts the capture and returns; use stop to end it.
	Duration float64
	// Max overrides the daemon's max clip length for this capture.
	Max  float64
	JSON bool
}

// commandResult mirrors the daemon's recorder reply.
type commandResult struct {
	OK      bool         `json:"ok"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Session string       `json:"session,omitempty"`
	Path    string       `json:"path,omitempty"`
	Result  *savedResult `json:"result,omitempty"`
}

// savedResult mirrors a saved recording as reported by the daemon.
type savedResult struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Trim struct {
		ValidSamples int `json:"valid_samples"`
		TotalSamples int `json:"total_samples"`
	} `json:"trim"`
	Format struct {
		SampleRate int `json:"sample_rate"`
		Channels   int `json:"channels"`
	} `json:"format"`
	Frames     int           `json:"frames"`
	DurationNS time.Duration `json:"duration_ns"`
	Bytes      int           `json:"bytes"`
	SavedAt    time.Time     `json:"saved_at"`
}

func (r *savedResult) seconds() float64 { return r.DurationNS.Seconds() }

// Record starts a capture and, when opts.Duration is set, stops it after
// that long. Ctrl-C during the wait stops early and still saves.
func Record(baseURL string, opts RecordOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	body := map[string]any{}
	if opts.Max > 0 {
		body["max_seconds"] = opts.Max
	}
	var started commandResult
	if err := postJSON(baseURL, "/api/record/start", body, &started); err != nil {
		return err
	}
	if opts.Duration <= 0 {
		if opts.JSON {
			return printJSON(started)
		}
		fmt.Fprintf(out, "\n  %s  %s\n  %s %s\n\n", colorize(red, "RECORDING"), started.Message,
			colorize(dim, "file:"), started.Path)
		return nil
	}

	if !opts.JSON {
		fmt.Fprintf(out, "\n  %s  %s %s\n", colorize(red, "RECORDING"), started.Path,
			colorize(dim, fmt.Sprintf("(stopping in %s, Ctrl-C to stop now)", formatSeconds(opts.Duration))))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	t := time.NewTimer(time.Duration(opts.Duration * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}

	return Stop(baseURL, opts.JSON)
}

// Stop ends the capture in progress and prints the saved recording.
func Stop(baseURL string, jsonOutput bool) error {
	var res commandResult
	if err := postJSON(baseURL, "/api/record/stop", nil, &res); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	printSaved(res)
	return nil
}

// Cancel aborts the capture in progress without saving anything.
func Cancel(baseURL string, jsonOutput bool) error {
	var res commandResult
	if err := postJSON(baseURL, "/api/record/cancel", nil, &res); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Fprintf(out, "\n  %s  %s\n\n", colorize(yellow, "CANCELLED"), res.Message)
	return nil
}

func printSaved(res commandResult) {
	fmt.Fprintln(out)
	if res.Result == nil {
		fmt.Fprintf(out, "  %s  %s\n\n", colorize(green, "STOPPED"), res.Message)
		return
	}
	r := res.Result
	fmt.Fprintf(out, "  %s  %s\n", colorize(green, "SAVED"), r.Path)
	fmt.Fprintf(out, "    %-12s %s\n", colorize(dim, "Length:"), formatSeconds(r.seconds()))
	fmt.Fprintf(out, "    %-12s %d Hz, %d ch\n", colorize(dim, "Format:"), r.Format.SampleRate, r.Format.Channels)
	fmt.Fprintf(out, "    %-12s %d of %d samples kept\n", colorize(dim, "Trim:"), r.Trim.ValidSamples, r.Trim.TotalSamples)
	fmt.Fprintf(out, "    %-12s %s\n", colorize(dim, "Size:"), formatBytes(int64(r.Bytes)))
	fmt.Fprintln(out)
}
