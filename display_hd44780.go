//go:build tinygo && hd44780 && !nodisplay

package main

import (
	"machine"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/display"
)

// 16x2 character LCD on a PCF8574 backpack
func openDisplay(bus *machine.I2C) (display.Renderer, error) {
	return display.NewHD44780(bus, display.DefaultCharConfig())
}
