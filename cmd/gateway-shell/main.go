// Command gateway-shell is an interactive REPL for driving a Manager
// against one or more sensor gateways by hand, with readline wired as
// the real input loop for history and arrow-key line editing.
//
// Usage:
//
//	gateway-shell
//
// Commands (type 'help' inside the shell for the full list):
//
//	connect <id> <url> <user> <pass>
//	disconnect <id>
//	status [id]
//	sensors <id>
//	take battery|temperature|vibration <id> <serial>
//	quit
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sensormesh/gateway-go/pkg/config"
	"github.com/sensormesh/gateway-go/pkg/gateway"
	"github.com/sensormesh/gateway-go/pkg/log"
	"github.com/sensormesh/gateway-go/pkg/manager"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// shell holds one gateway.Client per id the operator has connected.
type shell struct {
	m       *manager.Manager
	clients map[string]*gateway.Client
}

func main() {
	rl, err := readline.New("gateway> ")
	if err != nil {
		fmt.Println("Error: init readline:", err)
		return
	}
	defer rl.Close()

	s := &shell{
		m:       manager.New(config.Default(), log.NoopLogger{}),
		clients: make(map[string]*gateway.Client),
	}
	defer func() { _ = s.m.DisconnectAll() }()

	s.printHelp()
	ctx := context.Background()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "connect":
			s.cmdConnect(ctx, args)
		case "disconnect":
			s.cmdDisconnect(args)
		case "status":
			s.cmdStatus(args)
		case "sensors":
			s.cmdSensors(ctx, args)
		case "take":
			s.cmdTake(ctx, args)
		case "quit", "exit", "q":
			fmt.Println("Disconnecting all gateways...")
			return
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *shell) printHelp() {
	fmt.Print(`
Gateway Shell Commands:
  connect <id> <url> <user> <pass>        - Open and authenticate a gateway
  disconnect <id>                         - Close a gateway
  status [id]                             - Show one or all gateway states
  sensors <id>                            - Fetch and print connected sensors
  take battery|temperature|vibration <id> <serial>
                                           - Take a live reading
  help                                    - Show this help
  quit                                    - Exit

`)
}

func (s *shell) client(id string) (*gateway.Client, bool) {
	c, ok := s.clients[id]
	return c, ok
}

func (s *shell) cmdConnect(ctx context.Context, args []string) {
	if len(args) < 4 {
		fmt.Println("Usage: connect <id> <url> <user> <pass>")
		return
	}
	id, url, user, pass := args[0], args[1], args[2], args[3]

	c := gateway.NewClient(id, s.m)
	fmt.Printf("Connecting to %s at %s...\n", id, url)
	if err := c.Connect(ctx, url, user, pass); err != nil {
		fmt.Printf("Connect failed: %v\n", err)
		return
	}
	s.clients[id] = c
	fmt.Println("Connected and authenticated.")
}

func (s *shell) cmdDisconnect(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: disconnect <id>")
		return
	}
	id := args[0]
	c, ok := s.client(id)
	if !ok {
		fmt.Printf("Unknown gateway: %s\n", id)
		return
	}
	if err := c.Disconnect(); err != nil {
		fmt.Printf("Disconnect failed: %v\n", err)
		return
	}
	delete(s.clients, id)
	fmt.Println("Disconnected.")
}

func (s *shell) cmdStatus(args []string) {
	if len(args) == 1 {
		s.printStatus(args[0])
		return
	}
	if len(s.clients) == 0 {
		fmt.Println("No gateways connected.")
		return
	}
	for id := range s.clients {
		s.printStatus(id)
	}
}

func (s *shell) printStatus(id string) {
	c, ok := s.client(id)
	if !ok {
		fmt.Printf("Unknown gateway: %s\n", id)
		return
	}
	state, _ := c.State()
	fmt.Printf("  %s: %s (authenticated=%v)\n", id, state, c.IsAuthenticated())
}

func (s *shell) cmdSensors(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: sensors <id>")
		return
	}
	c, ok := s.client(args[0])
	if !ok {
		fmt.Printf("Unknown gateway: %s\n", args[0])
		return
	}
	entries, err := c.FetchConnectedSensors(ctx)
	if err != nil {
		fmt.Printf("Fetch failed: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No sensors reported.")
		return
	}
	for _, e := range entries {
		fmt.Printf("  %d  %-20s connected=%v\n", e.Serial, e.PartNumber, e.Connected)
	}
}

func (s *shell) cmdTake(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: take battery|temperature|vibration <id> <serial>")
		return
	}
	kind, id, serialStr := args[0], args[1], args[2]

	c, ok := s.client(id)
	if !ok {
		fmt.Printf("Unknown gateway: %s\n", id)
		return
	}
	n, err := strconv.ParseInt(serialStr, 10, 64)
	if err != nil {
		fmt.Printf("Invalid serial: %v\n", err)
		return
	}
	serial := wire.Serial(n)

	switch kind {
	case "battery":
		r, err := c.TakeBatteryReading(ctx, serial)
		if err != nil {
			fmt.Printf("Take failed: %v\n", err)
			return
		}
		fmt.Printf("  battery: %.1f%% (id=%d)\n", r.Percent, r.ID)
	case "temperature":
		r, err := c.TakeTemperatureReading(ctx, serial)
		if err != nil {
			fmt.Printf("Take failed: %v\n", err)
			return
		}
		fmt.Printf("  temperature: %.1fC (id=%d)\n", r.TempC, r.ID)
	case "vibration":
		r, err := c.TakeVibrationReading(ctx, serial)
		if err != nil {
			fmt.Printf("Take failed: %v\n", err)
			return
		}
		fmt.Printf("  vibration: x=%.3f y=%.3f z=%.3f (id=%d)\n", r.X, r.Y, r.Z, r.ID)
	default:
		fmt.Printf("Unknown reading kind: %s (want battery, temperature, or vibration)\n", kind)
	}
}
