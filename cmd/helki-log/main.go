// Command helki-log is a tool for viewing and analyzing protocol
// capture files.
//
// Capture files are created by running helki-monitor with the
// -log-file flag.
//
// Usage:
//
//	helki-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	helki-log view session.cbor
//
//	# View only wire-layer events
//	helki-log view -layer wire session.cbor
//
//	# View only outgoing messages
//	helki-log view -direction out session.cbor
//
//	# Export to JSONL
//	helki-log export -format jsonl session.cbor
//
//	# Filter by session and save to a new file
//	helki-log filter -session S1abc -o filtered.cbor session.cbor
//
//	# Show statistics
//	helki-log stats session.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fr33mang/helki-go/cmd/helki-log/commands"
)

const usage = `helki-log - Protocol Capture Analyzer

Usage:
  helki-log <command> [flags] <file.cbor>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "helki-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer := fs.String("layer", "", "Filter by layer: transport, wire, service")
	direction := fs.String("direction", "", "Filter by direction: in, out")
	category := fs.String("category", "", "Filter by category: message, control, state, error")
	fs.Parse(args)

	path := requirePath(fs, "view")

	var filter commands.ViewFilter
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fatal(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fatal(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fatal(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "jsonl", "Output format: jsonl, csv")
	output := fs.String("o", "", "Output file (default stdout)")
	fs.Parse(args)

	path := requirePath(fs, "export")
	if err := commands.RunExport(path, *format, *output); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	opts := commands.FilterOptions{}
	fs.StringVar(&opts.Output, "o", "filtered.cbor", "Output file")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.SessionID, "session", "", "Filter by Engine.IO session ID")
	fs.StringVar(&opts.DeviceID, "device", "", "Filter by device ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter events at or after this time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter events before this time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer: transport, wire, service")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction: in, out")
	fs.StringVar(&opts.Category, "category", "", "Filter by category: message, control, state, error")
	fs.Parse(args)

	path := requirePath(fs, "filter")
	if err := commands.RunFilter(path, opts); err != nil {
		fatal(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	path := requirePath(fs, "stats")
	if err := commands.RunStats(path, os.Stdout); err != nil {
		fatal(err)
	}
}

func requirePath(fs *flag.FlagSet, cmd string) string {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: helki-log %s [flags] <file.cbor>\n", cmd)
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
