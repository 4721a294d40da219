// Memoctl is the command-line client for a running voicememod. It records,
// lists, inspects and downloads voice memos over HTTP and streams live
// events over WebSocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/voicememo/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "voicememod URL (e.g. http://192.168.8.1:8090)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --duration are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	// ── Recording ─────────────────────────────────────────────────
	case "record":
		opts := ctl.RecordOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("record", pflag.ContinueOnError)
		fs.Float64VarP(&opts.Duration, "duration", "d", 0, "Stop after this many seconds (0 = leave running)")
		fs.Float64Var(&opts.Max, "max", 0, "Max clip length in seconds (default: daemon's recorder.max_seconds)")
		if err := fs.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		err = ctl.Record(*host, opts)

	case "stop":
		err = ctl.Stop(*host, *jsonOut)

	case "cancel":
		err = ctl.Cancel(*host, *jsonOut)

	// ── Recordings ────────────────────────────────────────────────
	case "list", "ls":
		err = ctl.List(*host, *jsonOut)

	case "info":
		err = withName(subArgs, func(name string) error { return ctl.Info(*host, name, *jsonOut) })

	case "download":
		var dest string
		fs := pflag.NewFlagSet("download", pflag.ContinueOnError)
		fs.StringVarP(&dest, "output", "o", "", "Write to FILE instead of ./NAME")
		if err := fs.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		err = withName(fs.Args(), func(name string) error { return ctl.Download(*host, name, dest, *jsonOut) })

	case "delete", "rm":
		err = withName(subArgs, func(name string) error { return ctl.Delete(*host, name, *jsonOut) })

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		var filter []string
		fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		fs.StringSliceVar(&filter, "filter", nil, "Event types to show (e.g. --filter state,recording_saved)")
		if err := fs.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		err = ctl.Watch(*host, ctl.WatchOptions{Filter: filter, JSON: *jsonOut})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withName(args []string, fn func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one recording NAME, got %d arguments", len(args))
	}
	return fn(args[0])
}

func usage() {
	fmt.Print(`
  memoctl: voice memo recorder control CLI

  USAGE
    memoctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime and the capture in progress
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration

  COMMANDS (recording)
    record          Start a capture
    stop            Stop the capture and save it
    cancel          Abort the capture without saving

  COMMANDS (recordings)
    list            List saved recordings with length and format
    info NAME       Load a recording and show its decoded metadata
    download NAME   Save a recording's WAV bytes locally
    delete NAME     Delete a recording

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text

  COMMAND FLAGS
    record:
    -d, --duration SECS     Stop automatically after SECS seconds
        --max SECS          Max clip length for this capture

    download:
    -o, --output FILE       Destination file (default: ./NAME)

    watch:
        --filter TYPES      Event types to show (comma-separated)

  EXAMPLES
    memoctl status
    memoctl record --duration 5
    memoctl record --max 60
    memoctl stop
    memoctl list
    memoctl info Audio_20261018T093000.0000Z.wav
    memoctl download Audio_20261018T093000.0000Z.wav -o memo.wav
    memoctl --json list
    memoctl watch --filter state,recording_saved

`)
}
