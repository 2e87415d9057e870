//go:build tinygo

package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/ir"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/protocol"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/recorder"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/storage"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/serial"
)

const (
	irPin = machine.GP14

	serialWait     = 2 * time.Second
	serialWaitStep = 50 * time.Millisecond
)

// MAIN THREAD DUTIES
// Poll the IR recorder, then the serial console, forever.

func main() {
	port := machine.Serial // USB CDC Serial
	waitForSerial(port)

	logger := slog.New(slog.NewTextHandler(port, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("irrecord:starting", slog.Int("pin", int(irPin)))

	settings := config.DefaultSettings()
	store, err := storage.New(machine.Flash, true)
	if err != nil {
		logger.Error("storage:mount-failed", slog.String("err", err.Error()))
		store = nil
	} else if err := store.LoadSettings(&settings); err != nil {
		logger.Info("storage:no-settings", slog.String("err", err.Error()))
		settings = config.DefaultSettings()
	}

	rx := ir.NewPinReceiver(irPin, ir.Config{
		BufferSize:     int(settings.CaptureBufferSize),
		Timeout:        settings.Timeout(),
		Tolerance:      settings.TolerancePct,
		MinUnknownSize: int(settings.MinUnknownSize),
	})
	if err := rx.Start(); err != nil {
		logger.Error("ir:start-failed", slog.String("err", err.Error()))
	}

	err = machine.I2C0.Configure(machine.I2CConfig{
		SDA:       machine.GPIO0,
		SCL:       machine.GPIO1,
		Frequency: 400 * machine.KHz,
	})
	if err != nil {
		haltForever(logger, "i2c:configure-failed", err)
	}

	screen, err := openDisplay(machine.I2C0)
	if err != nil {
		haltForever(logger, "display:init-failed", err)
	}
	logger.Info("display:ready")

	cfg := recorder.Config{
		Decoder:  rx,
		Display:  screen,
		Dump:     port,
		Logger:   logger,
		Settings: settings,
		Sink:     startNetwork(logger),
	}
	if store != nil {
		cfg.Store = store
	}
	rec := recorder.New(cfg)
	if err := rec.Start(); err != nil {
		logger.Error("display:flush-failed", slog.String("err", err.Error()))
	}

	var handler *protocol.Handler
	if store != nil {
		handler = protocol.NewHandler(store, rec)
	}
	console := serial.NewSerial(port, handler, logger)

	for {
		rec.Poll()
		console.Poll()
		time.Sleep(time.Millisecond)
	}
}

// waitForSerial gives a host terminal up to serialWait to attach.
func waitForSerial(port machine.Serialer) {
	for waited := time.Duration(0); waited < serialWait && !port.DTR(); waited += serialWaitStep {
		time.Sleep(serialWaitStep)
	}
}

// haltForever logs msg once a second and never returns.
func haltForever(logger *slog.Logger, msg string, err error) {
	for {
		logger.Error(msg, slog.String("err", err.Error()))
		time.Sleep(time.Second)
	}
}
