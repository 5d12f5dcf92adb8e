// Package interactive provides the interactive command-line interface
// for the Helki monitor.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/fr33mang/helki-go/pkg/helki"
	"github.com/fr33mang/helki-go/pkg/service"
	"github.com/fr33mang/helki-go/pkg/state"
)

// Monitor handles interactive mode for helki-monitor.
type Monitor struct {
	coord  *service.Coordinator
	client *helki.Client
	rl     *readline.Instance
}

// New creates a new interactive monitor handler.
func New(coord *service.Coordinator, client *helki.Client) (*Monitor, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "helki> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Monitor{
		coord:  coord,
		client: client,
		rl:     rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the
// command prompt.
func (m *Monitor) Stdout() io.Writer {
	return m.rl.Stdout()
}

// Run starts the interactive command loop.
func (m *Monitor) Run(ctx context.Context, cancel context.CancelFunc) {
	defer m.rl.Close()

	m.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := m.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(m.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			m.printHelp()

		case "zones", "z", "ls":
			m.cmdZones()

		case "status", "s":
			m.cmdStatus(args)

		case "refresh":
			m.cmdRefresh(ctx)

		case "set-temp", "temp":
			m.cmdSetTemp(ctx, args)

		case "mode":
			m.cmdMode(ctx, args)

		case "state":
			m.cmdState()

		case "quit", "exit", "q":
			fmt.Fprintln(m.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(m.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (m *Monitor) printHelp() {
	fmt.Fprintln(m.rl.Stdout(), `
Helki Monitor Commands:
  Monitoring:
    zones                - List known heater zones
    status <addr>        - Show the status of one zone
    refresh              - Request fresh data
    state                - Show the connection state

  Control:
    set-temp <addr> <t>  - Set the target temperature (Celsius)
    mode <addr> <m>      - Set the mode: off, auto, modified_auto

  Other:
    help                 - Show this help
    quit                 - Exit the monitor`)
}

func (m *Monitor) cmdZones() {
	zones := m.sortedZones()
	if len(zones) == 0 {
		fmt.Fprintln(m.rl.Stdout(), "No zones known yet")
		return
	}

	fmt.Fprintf(m.rl.Stdout(), "%-6s %-16s %-14s %-8s %s\n", "Addr", "Name", "Mode", "Target", "Measured")
	fmt.Fprintln(m.rl.Stdout(), strings.Repeat("-", 56))
	for _, z := range zones {
		fmt.Fprintf(m.rl.Stdout(), "%-6d %-16s %-14s %-8s %s\n",
			z.ZoneID,
			zoneName(z),
			helki.ParseMode(statusString(z, "mode")),
			statusString(z, "stemp"),
			statusString(z, "mtemp"),
		)
	}
}

func (m *Monitor) cmdStatus(args []string) {
	z, ok := m.resolveZone(args)
	if !ok {
		return
	}

	fmt.Fprintf(m.rl.Stdout(), "\nZone %d (%s):\n", z.ZoneID, zoneName(z))
	fmt.Fprintln(m.rl.Stdout(), "-------------------------------------------")
	keys := make([]string, 0, len(z.Status))
	for k := range z.Status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(m.rl.Stdout(), "  %-16s %v\n", k, z.Status[k])
	}
	fmt.Fprintln(m.rl.Stdout())
}

func (m *Monitor) cmdRefresh(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := m.coord.RequestRefresh(reqCtx); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Refresh failed: %v\n", err)
		return
	}
	fmt.Fprintln(m.rl.Stdout(), "Refresh requested")
}

func (m *Monitor) cmdSetTemp(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: set-temp <addr> <temperature>")
		return
	}
	z, ok := m.resolveZone(args[:1])
	if !ok {
		return
	}
	temp, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid temperature: %s\n", args[1])
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// A manual setpoint only sticks in modified_auto.
	if err := m.client.SetTemperature(reqCtx, z.Device.DeviceID, z.ZoneID, temp, helki.ModeModifiedAuto); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Set temperature failed: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "Zone %d target set to %.1f°C\n", z.ZoneID, temp)
}

func (m *Monitor) cmdMode(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: mode <addr> <off|auto|modified_auto>")
		return
	}
	z, ok := m.resolveZone(args[:1])
	if !ok {
		return
	}
	mode := helki.Mode(args[1])
	switch mode {
	case helki.ModeOff, helki.ModeAuto, helki.ModeModifiedAuto:
	default:
		fmt.Fprintf(m.rl.Stdout(), "Unknown mode: %s (use: off, auto, modified_auto)\n", args[1])
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := m.client.SetMode(reqCtx, z.Device.DeviceID, z.ZoneID, mode); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Set mode failed: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "Zone %d mode set to %s\n", z.ZoneID, mode)
}

func (m *Monitor) cmdState() {
	dev := m.coord.Device()
	fmt.Fprintf(m.rl.Stdout(), "Connection: %s\n", m.coord.State())
	fmt.Fprintf(m.rl.Stdout(), "Device:     %s (%s)\n", dev.ID, dev.Name)
	if dev.GroupName != "" {
		fmt.Fprintf(m.rl.Stdout(), "Group:      %s\n", dev.GroupName)
	}
	fmt.Fprintf(m.rl.Stdout(), "Zones:      %d\n", len(m.coord.CurrentSnapshot()))
}

// resolveZone looks a zone up by its address argument.
func (m *Monitor) resolveZone(args []string) (state.ZoneState, bool) {
	if len(args) < 1 {
		fmt.Fprintln(m.rl.Stdout(), "Missing zone address")
		return state.ZoneState{}, false
	}
	addr, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Invalid zone address: %s\n", args[0])
		return state.ZoneState{}, false
	}

	for _, z := range m.coord.CurrentSnapshot() {
		if z.ZoneID == addr {
			return z, true
		}
	}
	fmt.Fprintf(m.rl.Stdout(), "Zone %d not known (try 'zones')\n", addr)
	return state.ZoneState{}, false
}

func (m *Monitor) sortedZones() []state.ZoneState {
	snap := m.coord.CurrentSnapshot()
	zones := make([]state.ZoneState, 0, len(snap))
	for _, z := range snap {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ZoneID < zones[j].ZoneID })
	return zones
}

func zoneName(z state.ZoneState) string {
	if z.Name != "" {
		return z.Name
	}
	return fmt.Sprintf("Zone %d", z.ZoneID)
}

func statusString(z state.ZoneState, key string) string {
	v, ok := z.Status[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%v", v)
}
