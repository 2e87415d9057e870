//go:build tinygo && nodisplay

package main

import (
	"machine"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/display"
)

// Serial output only.
func openDisplay(*machine.I2C) (display.Renderer, error) {
	return display.Discard{Width: 128, Height: 64}, nil
}
