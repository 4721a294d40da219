package ctl

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type recordingEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Info    *struct {
		SampleRate int `json:"sample_rate"`
		Channels   int `json:"channels"`
		Frames     int `json:"frames"`
	} `json:"info"`
	Seconds  float64 `json:"duration_seconds"`
	Error    string  `json:"error"`
	Loadable bool    `json:"loadable"`
}

// List prints the recordings stored by the daemon.
func List(baseURL string, jsonOutput bool) error {
	var resp struct {
		Recordings []recordingEntry `json:"recordings"`
	}
	if err := getJSON(baseURL, "/api/recordings", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  RECORDINGS"))
	if len(resp.Recordings) == 0 {
		fmt.Fprintln(out, rule(24))
		fmt.Fprintln(out, "  No recordings found.")
		fmt.Fprintln(out)
		return nil
	}

	t := newTable("  ", "Name", "Length", "Format", "Size", "Saved", "Note")
	t.alignRight(1)
	t.alignRight(3)
	for _, r := range resp.Recordings {
		length, format, note := "-", "-", ""
		switch {
		case r.Error != "":
			note = colorize(red, "unreadable")
		case r.Info != nil:
			length = formatSeconds(r.Seconds)
			format = fmt.Sprintf("%d Hz/%d", r.Info.SampleRate, r.Info.Channels)
			if !r.Loadable {
				note = colorize(yellow, "too short")
			}
		}
		t.row(r.Name, length, format, formatBytes(r.Size), r.ModTime.Local().Format("2006-01-02 15:04"), note)
	}
	t.flush()
	fmt.Fprintln(out)
	return nil
}

// Info loads one recording on the daemon and prints its decoded metadata.
func Info(baseURL, name string, jsonOutput bool) error {
	var info struct {
		Name       string  `json:"name"`
		Session    string  `json:"session"`
		State      string  `json:"state"`
		SampleRate int     `json:"sample_rate"`
		Channels   int     `json:"channels"`
		Frames     int     `json:"frames"`
		Samples    int     `json:"samples"`
		Seconds    float64 `json:"duration_seconds"`
		Peak       float64 `json:"peak"`
	}
	if err := getJSON(baseURL, "/api/recordings/"+url.PathEscape(name), &info); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(info)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  "+info.Name))
	fmt.Fprintln(out, rule(38))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(info.State), info.State))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Length:"), formatSeconds(info.Seconds))
	fmt.Fprintf(out, "  %-12s %d Hz, %d ch\n", colorize(dim, "Format:"), info.SampleRate, info.Channels)
	fmt.Fprintf(out, "  %-12s %d (%d samples)\n", colorize(dim, "Frames:"), info.Frames, info.Samples)
	fmt.Fprintf(out, "  %-12s %.3f [%s]\n", colorize(dim, "Peak:"), info.Peak, progressBar(int(info.Peak*100), 20))
	fmt.Fprintln(out)
	return nil
}

// Download saves the raw WAV bytes of name to dest, or to ./name when dest
// is empty.
func Download(baseURL, name, dest string, jsonOutput bool) error {
	resp, err := httpClient.Get(strings.TrimRight(baseURL, "/") + "/api/recordings/" + url.PathEscape(name) + "/wav")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}

	if dest == "" {
		dest = filepath.Base(name)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := f.ReadFrom(resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"ok": true, "name": name, "file": dest, "bytes": n})
	}
	fmt.Fprintf(out, "\n  %s  %s -> %s (%s)\n\n", colorize(green, "SAVED"), name, dest, formatBytes(n))
	return nil
}

// Delete removes a recording from the daemon's store.
func Delete(baseURL, name string, jsonOutput bool) error {
	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	if err := deleteJSON(baseURL, "/api/recordings/"+url.PathEscape(name), &result); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(result)
	}
	fmt.Fprintf(out, "\n  %s  %s\n\n", colorize(green, "DELETED"), result.Message)
	return nil
}
