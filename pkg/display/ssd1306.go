//go:build tinygo

package display

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ssd1306"
)

// NewSSD1306 configures an SSD1306 on an already configured I2C bus.
// It returns ErrNotFound when the controller does not acknowledge.
func NewSSD1306(bus drivers.I2C, cfg PixelConfig) (*Screen, error) {
	dev := ssd1306.NewI2C(bus)
	dev.Configure(ssd1306.Config{
		Address: cfg.Address,
		Width:   cfg.Width,
		Height:  cfg.Height,
	})

	// Configure swallows bus errors, so ask for the display explicitly.
	if err := dev.Tx([]byte{ssd1306.DISPLAYON}, true); err != nil {
		return nil, ErrNotFound
	}

	dev.ClearDisplay()
	return NewScreen(dev), nil
}
