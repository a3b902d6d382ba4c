// Package config loads process-level settings for the demo binaries
// from the environment, optionally seeded from a .env file. Library
// packages never import this; they take explicit constructor
// arguments instead.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server holds the settings cmd/demo-server needs to stand up a
// Server and its transport.
type Server struct {
	ListenAddr      string
	TickRate        int
	PlayoutDelay    time.Duration
	MetricsAddr     string
}

// Client holds the settings cmd/demo-client needs to stand up a Client
// and its transport.
type Client struct {
	ServerAddr    string
	InputInterval time.Duration
}

// LoadServer reads server settings from the environment. envFile, if
// non-empty, is loaded into the environment first via godotenv; a
// missing file is not an error, matching godotenv's typical demo usage.
func LoadServer(envFile string) (Server, error) {
	loadEnvFile(envFile)

	tickRate, err := getenvInt("NETPLAY_TICK_RATE", 60)
	if err != nil {
		return Server{}, err
	}
	playoutMs, err := getenvInt("NETPLAY_PLAYOUT_DELAY_MS", 100)
	if err != nil {
		return Server{}, err
	}

	return Server{
		ListenAddr:   getenv("NETPLAY_LISTEN_ADDR", ":7777"),
		TickRate:     tickRate,
		PlayoutDelay: time.Duration(playoutMs) * time.Millisecond,
		MetricsAddr:  getenv("NETPLAY_METRICS_ADDR", ":9090"),
	}, nil
}

// LoadClient reads client settings from the environment.
func LoadClient(envFile string) (Client, error) {
	loadEnvFile(envFile)

	intervalMs, err := getenvInt("NETPLAY_INPUT_INTERVAL_MS", 33)
	if err != nil {
		return Client{}, err
	}

	return Client{
		ServerAddr:    getenv("NETPLAY_SERVER_ADDR", "127.0.0.1:7777"),
		InputInterval: time.Duration(intervalMs) * time.Millisecond,
	}, nil
}

func loadEnvFile(path string) {
	if path == "" {
		return
	}
	_ = godotenv.Load(path)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parsing %s: %w", key, err)
	}
	return n, nil
}
