// Command demo-client connects to a netplay demo-server, predicting
// its own player locally and reconciling against the server's
// snapshots. It has no real input device; gatherInput here stands in
// for whatever the owning application's input layer would supply.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthcode/netplay/client"
	"github.com/hearthcode/netplay/config"
	"github.com/hearthcode/netplay/democommon"
	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadClient(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sessionID := uuid.New()
	logger = logger.With(zap.String("session", sessionID.String()))

	t, err := transport.NewUDPClient(cfg.ServerAddr, logger)
	if err != nil {
		return fmt.Errorf("dialing udp server: %w", err)
	}
	defer t.Close()
	t.SetOccasionalPing(true)

	serverAddr, err := resolveServerAddr(cfg.ServerAddr)
	if err != nil {
		return err
	}

	var seq uint32
	gatherInput := func() entity.Input {
		seq++
		return entity.Input{Sequence: seq}
	}

	c := client.New(t, serverAddr, logger, nil, cfg.InputInterval, democommon.WalkBehavior{}, nil, nil, gatherInput)

	logger.Info("demo-client connected", zap.String("serverAddr", cfg.ServerAddr))

	const frameRate = 60
	frameInterval := time.Second / frameRate
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.Advance(frameInterval)
	}
	return nil
}

func resolveServerAddr(addr string) (*net.UDPAddr, error) {
	resolved, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving server address %q: %w", addr, err)
	}
	return resolved, nil
}
