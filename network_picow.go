//go:build tinygo && picow

package main

import (
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/publish"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/recorder"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/wifi"
)

// Set with -ldflags "-X main.broker=host:port".
var broker = "10.0.0.9:1883"

// startNetwork joins WiFi and starts the MQTT publisher in the background.
// Codes are queued until the broker connection is up.
func startNetwork(logger *slog.Logger) recorder.Sink {
	queue := publish.NewQueue(16)

	go func() {
		cfg := wifi.Config{
			Hostname:    "irrecord",
			MaxTCPConns: 1,
			Logger:      logger,
		}
		stack, err := wifi.Join(cfg)
		if err != nil {
			logger.Error("wifi:setup-failed", slog.String("err", err.Error()))
			return
		}
		go stack.Pump()

		if err := stack.Configure(cfg); err != nil {
			logger.Error("wifi:dhcp-failed", slog.String("err", err.Error()))
			return
		}

		client := publish.Client{
			ID:                "irrecord",
			Broker:            broker,
			Timeout:           5 * time.Second,
			TCPBufSize:        2030, // MTU - ethhdr - iphdr - tcphdr
			HeartbeatInterval: 30 * time.Second,
			Logger:            logger,
		}
		if err := client.Run(stack, queue.Events()); err != nil {
			logger.Error("mqtt:stopped", slog.String("err", err.Error()))
		}
	}()

	return queue
}
