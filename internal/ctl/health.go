package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health checks the daemon via GET /healthz, asking for the per-component
// report.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}
	defer resp.Body.Close()

	var report struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&report)
	healthy := resp.StatusCode == http.StatusOK

	if jsonOutput {
		return printJSON(map[string]any{"healthy": healthy, "url": baseURL, "checks": report.Checks})
	}

	fmt.Fprintln(out)
	if healthy {
		fmt.Fprintf(out, "  %s  voicememod is healthy at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Fprintf(out, "  %s  voicememod returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), resp.StatusCode, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := report.Checks[name]
		mark := colorize(green, "ok  ")
		detail := ""
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "FAIL")
			detail, _ = c["error"].(string)
		}
		fmt.Fprintf(out, "    %s %s %s\n", mark, padRight(name, 12), colorize(dim, detail))
	}
	fmt.Fprintln(out)

	return nil
}
