// Command demo-server stands up a netplay authoritative server over
// UDP, seeded with a flat ground plane and a scattering of dynamic
// props, and exposes its Prometheus collectors over HTTP.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hearthcode/netplay/config"
	"github.com/hearthcode/netplay/democommon"
	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/metrics"
	"github.com/hearthcode/netplay/server"
	"github.com/hearthcode/netplay/transport"
	"github.com/hearthcode/netplay/vecmath"
)

const (
	typeProp   int32 = 1
	typePlayer int32 = 100
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

	cfg, err := config.LoadServer(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewServer(reg)

	t, err := transport.NewUDPServer(cfg.ListenAddr, logger)
	if err != nil {
		return fmt.Errorf("binding udp server: %w", err)
	}
	defer t.Close()
	t.SetOccasionalPing(true)

	srv := server.New(t, logger, m, cfg.TickRate, cfg.PlayoutDelay, gameObjectFactory, clientObjectFactory)
	seedWorld(srv)

	go serveMetrics(cfg.MetricsAddr, reg, logger)

	logger.Info("demo-server listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Int("tickRate", cfg.TickRate),
		zap.Duration("playoutDelay", cfg.PlayoutDelay),
		zap.String("metricsAddr", cfg.MetricsAddr),
	)

	tickInterval := time.Second / time.Duration(cfg.TickRate)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		srv.Advance(tickInterval)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

// seedWorld lays out a flat ground plane (static) and a few dynamic
// crates so a connecting client has something to see and collide with
// immediately.
func seedWorld(srv *server.Server) {
	ground := entity.NewStaticEntity(
		0,
		entity.OrientedBox{HalfExtents: vecmath.NewVec3(50, 0.5, 50)},
		vecmath.NewVec3(0, 0, 0), vecmath.NewVec3(0, 0, 0),
		0.1, 0.8,
	)
	srv.AddStatic(ground)

	for i := 0; i < 5; i++ {
		state := entity.PhysicsState{Position: vecmath.NewVec3(float32(i)*2-4, 3, 0)}
		if _, err := srv.CreateObject(typeProp, state, nowMs(), nil); err != nil {
			panic(err)
		}
	}
}

func gameObjectFactory(typeID int32, objectID uint32, state entity.PhysicsState, params []byte) (*entity.DynamicEntity, error) {
	switch typeID {
	case typeProp:
		return entity.NewDynamicEntity(objectID, typeID, state, entity.OrientedBox{HalfExtents: vecmath.NewVec3(0.5, 0.5, 0.5)}, 1, 0.4, 0.6, 0.05, 0.2, false), nil
	default:
		return nil, fmt.Errorf("demo-server: unknown object type %d", typeID)
	}
}

func clientObjectFactory(clientID uint32) (*entity.PlayerEntity, error) {
	state := entity.PhysicsState{Position: vecmath.NewVec3(0, 2, 0)}
	d := entity.NewDynamicEntity(clientID, typePlayer, state, entity.Sphere{Radius: 0.5}, 5, 0.1, 0.9, 0.1, 0.4, true)
	return entity.NewPlayerEntity(d, clientID, democommon.WalkBehavior{}), nil
}

func nowMs() int64 { return time.Now().UnixMilli() }
