// Command gateway-probe is a one-shot CLI that connects to a single
// sensor gateway, takes one reading, prints it as JSON, and exits.
// A flag-driven one-shot harness: parse flags, run one operation, print
// and exit.
//
// Usage:
//
//	gateway-probe -url ws://host:port -user u -pass p -serial 1234 -kind battery
//
// Flags:
//
//	-url string       Gateway stream URL (ws:// or wss://)
//	-user string      Login username
//	-pass string      Login password
//	-serial int       Sensor serial number
//	-kind string      Reading kind: battery, temperature, vibration (default "battery")
//	-timeout duration Deadline for connecting and sending the reading command (default 45s);
//	                  the wait for the reading itself is bounded by the 30s reading timeout, not by this flag
//	-verbose          Log every protocol event to stderr
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sensormesh/gateway-go/pkg/config"
	"github.com/sensormesh/gateway-go/pkg/gateway"
	"github.com/sensormesh/gateway-go/pkg/log"
	"github.com/sensormesh/gateway-go/pkg/manager"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

var (
	url     = flag.String("url", "", "Gateway stream URL (ws:// or wss://)")
	user    = flag.String("user", "", "Login username")
	pass    = flag.String("pass", "", "Login password")
	serial  = flag.Int64("serial", 0, "Sensor serial number")
	kind    = flag.String("kind", "battery", "Reading kind: battery, temperature, vibration")
	timeout = flag.Duration("timeout", 45*time.Second, "Deadline for connecting and sending the reading command (the reading wait is bounded by the reading timeout)")
	verbose = flag.Bool("verbose", false, "Log every protocol event to stderr")
)

func main() {
	flag.Parse()

	if *url == "" || *user == "" || *serial == 0 {
		fmt.Fprintln(os.Stderr, "Error: -url, -user, and -serial are required")
		flag.Usage()
		os.Exit(1)
	}

	var logger log.Logger = log.NoopLogger{}
	if *verbose {
		logger = log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m := manager.New(config.Default(), logger)
	defer func() { _ = m.DisconnectAll() }()

	client := gateway.NewClient("probe", m)
	if err := client.Connect(ctx, *url, *user, *pass); err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect: %v\n", err)
		os.Exit(1)
	}

	result, err := takeReading(ctx, client, wire.Serial(*serial), *kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func takeReading(ctx context.Context, c *gateway.Client, s wire.Serial, kind string) (any, error) {
	switch kind {
	case "battery":
		return c.TakeBatteryReading(ctx, s)
	case "temperature":
		return c.TakeTemperatureReading(ctx, s)
	case "vibration":
		return c.TakeVibrationReading(ctx, s)
	default:
		return nil, fmt.Errorf("gateway-probe: unrecognized -kind %q (want battery, temperature, or vibration)", kind)
	}
}
