package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the hub and agent binaries.
type Config struct {
	// Port is the hub's HTTP/websocket server port.
	Port int

	// DatabasePath is the SQLite database file path.
	DatabasePath string

	// AdvertiseAddress overrides the discovery address pushed to capture
	// peers. Empty means auto-detect the LAN IP.
	AdvertiseAddress string

	// HubURL is the hub websocket endpoint the agent and reviewctl dial.
	HubURL string

	// CaptureInterval is the capture loop's tick period.
	CaptureInterval time.Duration

	// SnapshotPath is the HTML snapshot file the agent's static page reads.
	SnapshotPath string

	// PagePath is the location path the snapshot stands for, e.g. "/alice".
	PagePath string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "tweet-sweep.db"
	}

	hubURL := os.Getenv("HUB_URL")
	if hubURL == "" {
		hubURL = fmt.Sprintf("ws://localhost:%d/ws", port)
	}

	interval := 4 * time.Second
	if v := os.Getenv("CAPTURE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CAPTURE_INTERVAL: %w", err)
		}
		interval = d
	}

	return &Config{
		Port:             port,
		DatabasePath:     dbPath,
		AdvertiseAddress: os.Getenv("ADVERTISE_ADDRESS"),
		HubURL:           hubURL,
		CaptureInterval:  interval,
		SnapshotPath:     os.Getenv("SNAPSHOT_PATH"),
		PagePath:         os.Getenv("PAGE_PATH"),
	}, nil
}
