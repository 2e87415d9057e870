//go:build tinygo && !hd44780 && !nodisplay

package main

import (
	"machine"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/display"
)

func openDisplay(bus *machine.I2C) (display.Renderer, error) {
	return display.NewSSD1306(bus, display.DefaultPixelConfig())
}
