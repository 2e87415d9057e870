//go:build tinygo && !picow

package main

import (
	"log/slog"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/recorder"
)

func startNetwork(*slog.Logger) recorder.Sink {
	return nil
}
