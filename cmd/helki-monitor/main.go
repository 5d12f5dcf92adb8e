// Command helki-monitor is a reference monitor for Helki cloud
// heaters.
//
// It keeps a local copy of every heater zone synchronized over the
// cloud's realtime channel, falling back to REST polling when the
// push channel is unavailable, and can optionally drive the heaters
// interactively.
//
// Usage:
//
//	helki-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-token string      Bearer access token (overrides the config file)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-log-file string   Capture the protocol event stream as CBOR
//	-interactive       Enable interactive command mode
//
// Examples:
//
//	# Monitor with a token from the command line
//	helki-monitor -token "$HELKI_TOKEN"
//
//	# Monitor with a config file and protocol capture
//	helki-monitor -config monitor.yaml -log-file session.cbor
//
//	# Drive the heaters interactively
//	helki-monitor -config monitor.yaml -interactive
//
// Interactive Commands:
//
//	zones                - List known heater zones
//	status <addr>        - Show the status of one zone
//	refresh              - Request fresh data
//	set-temp <addr> <t>  - Set the target temperature (Celsius)
//	mode <addr> <m>      - Set the mode: off, auto, modified_auto
//	state                - Show the connection state
//	quit                 - Exit the monitor
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fr33mang/helki-go/cmd/helki-monitor/interactive"
	"github.com/fr33mang/helki-go/pkg/config"
	"github.com/fr33mang/helki-go/pkg/helki"
	"github.com/fr33mang/helki-go/pkg/log"
	"github.com/fr33mang/helki-go/pkg/service"
	"github.com/fr33mang/helki-go/pkg/transport"
)

// Config holds the monitor's command-line configuration.
type Config struct {
	ConfigFile  string
	Token       string
	LogLevel    string
	LogFile     string
	Interactive bool
}

var cli Config

func init() {
	flag.StringVar(&cli.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&cli.Token, "token", "", "Bearer access token (overrides the config file)")
	flag.StringVar(&cli.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cli.LogFile, "log-file", "", "Capture the protocol event stream as CBOR")
	flag.BoolVar(&cli.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	cfg := &config.Config{}
	if cli.ConfigFile != "" {
		loaded, err := config.Load(cli.ConfigFile)
		if err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if cli.Token != "" {
		cfg.API.Token = cli.Token
	}
	if cfg.API.Token == "" {
		stdlog.Fatal("No access token (use -token or the config file)")
	}
	if cli.LogLevel == "" {
		cli.LogLevel = cfg.Log.Level
	}
	if cli.LogFile == "" {
		cli.LogFile = cfg.Log.File
	}

	setupLogging(cli.LogLevel)

	logger, closeLogger, err := buildProtocolLogger(cli.LogLevel, cli.LogFile)
	if err != nil {
		stdlog.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLogger()

	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = helki.DefaultBaseURL
	}

	tokens := staticToken(cfg.API.Token)
	requester := newBearerRequester(tokens)
	client := helki.NewClientWithBaseURL(requester, baseURL)

	svcCfg := cfg.ServiceConfig()
	svcCfg.Logger = logger

	coord := service.NewCoordinator(svcCfg, client, client, func(deviceID string) service.PushSession {
		tc := cfg.TransportConfig(deviceID)
		if tc.BaseURL == "" {
			tc.BaseURL = baseURL
		}
		tc.Logger = logger
		return transport.NewSession(tc, requester, tokens)
	})

	stdlog.Println("Helki Monitor")
	stdlog.Println("=============")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start: %v", err)
	}
	dev := coord.Device()
	stdlog.Printf("Synchronizing device %s (%s), %d zone(s)", dev.ID, dev.Name, len(coord.CurrentSnapshot()))

	if cli.Interactive {
		im, err := interactive.New(coord, client)
		if err != nil {
			stdlog.Fatalf("Failed to create interactive monitor: %v", err)
		}
		// Redirect log output through readline to avoid interfering
		// with the command prompt.
		stdlog.SetOutput(im.Stdout())
		go im.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Cancelled by the interactive quit command.
	}

	stdlog.Println("Shutting down...")
	coord.Stop()
	stdlog.Println("Goodbye!")
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)
	if level == "debug" {
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	}
}

// buildProtocolLogger assembles the protocol event logger: slog for
// human-readable output, plus a CBOR capture file when requested.
func buildProtocolLogger(level, file string) (log.Logger, func(), error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	adapter := log.NewSlogAdapter(slog.New(handler))

	if file == "" {
		return adapter, func() {}, nil
	}

	capture, err := log.NewFileLogger(file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", file, err)
	}
	return log.NewMultiLogger(adapter, capture), func() { _ = capture.Close() }, nil
}
