package display

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
)

// blockChar is the solid block glyph in the HD44780 character ROM.
const blockChar = 0xFF

// CharDevice is a character LCD such as hd44780i2c.Device.
type CharDevice interface {
	SetCursor(x, y uint8)
	Print(data []byte)
}

// CharConfig describes an HD44780 LCD behind a PCF8574 I2C backpack.
type CharConfig struct {
	Width     uint8
	Height    uint8
	Addresses []uint8 // probed in order
}

// DefaultCharConfig is a 16x2 LCD at one of the common backpack addresses.
func DefaultCharConfig() CharConfig {
	return CharConfig{
		Width:     16,
		Height:    2,
		Addresses: []uint8{0x27, 0x3F},
	}
}

// NewHD44780 probes cfg.Addresses on bus and configures the first LCD that
// acknowledges. It returns ErrNotFound if none does.
func NewHD44780(bus drivers.I2C, cfg CharConfig) (*CharScreen, error) {
	for _, addr := range cfg.Addresses {
		// backlight bit only; harmless if something else lives here
		if err := bus.Tx(uint16(addr), []byte{0x08}, nil); err != nil {
			continue
		}
		dev := hd44780i2c.New(bus, addr)
		if err := dev.Configure(hd44780i2c.Config{
			Width:  cfg.Width,
			Height: cfg.Height,
		}); err != nil {
			return nil, err
		}
		return NewCharScreen(&dev, cfg.Width, cfg.Height), nil
	}
	return nil, ErrNotFound
}

// CharScreen renders onto a character LCD. Coordinates are in cells and the
// text size is ignored. Drawing goes to a shadow buffer that Display writes
// out row by row.
type CharScreen struct {
	dev    CharDevice
	cols   int16
	rows   int16
	buffer [][]byte
	x, y   int16
}

// NewCharScreen wraps dev with a blank shadow buffer.
func NewCharScreen(dev CharDevice, cols, rows uint8) *CharScreen {
	s := &CharScreen{
		dev:    dev,
		cols:   int16(cols),
		rows:   int16(rows),
		buffer: make([][]byte, rows),
	}
	for i := range s.buffer {
		s.buffer[i] = make([]byte, cols)
	}
	s.FillScreen(Black)
	return s
}

func (s *CharScreen) Size() (int16, int16) {
	return s.cols, s.rows
}

// Row returns the buffered contents of row.
func (s *CharScreen) Row(row int) string {
	if row < 0 || row >= len(s.buffer) {
		return ""
	}
	return string(s.buffer[row])
}

func (s *CharScreen) FillScreen(c color.RGBA) {
	ch := byte(' ')
	if c != Black {
		ch = blockChar
	}
	for _, row := range s.buffer {
		for i := range row {
			row[i] = ch
		}
	}
}

func (s *CharScreen) SetCursor(x, y int16) {
	s.x, s.y = x, y
}

func (s *CharScreen) SetTextSize(uint8) {}

func (s *CharScreen) SetTextColor(color.RGBA) {}

// Print writes str at the cursor. Characters past the right edge or below
// the last row are dropped.
func (s *CharScreen) Print(str string) {
	for i := 0; i < len(str); i++ {
		ch := str[i]
		if ch == '\n' {
			s.x = 0
			s.y++
			continue
		}
		if s.x >= 0 && s.x < s.cols && s.y >= 0 && s.y < s.rows {
			s.buffer[s.y][s.x] = ch
		}
		s.x++
	}
}

// FillRect marks the bottom-right cell covered by the rectangle. A cell is far
// larger than the pixel-sized marks the recorder draws.
func (s *CharScreen) FillRect(x, y, w, h int16, c color.RGBA) {
	if w <= 0 || h <= 0 {
		return
	}
	cx := min(x+w, s.cols) - 1
	cy := min(y+h, s.rows) - 1
	if cx < 0 || cy < 0 || cx < x || cy < y {
		return
	}
	ch := byte(' ')
	if c != Black {
		ch = blockChar
	}
	s.buffer[cy][cx] = ch
}

func (s *CharScreen) Display() error {
	for row := range s.buffer {
		s.dev.SetCursor(0, uint8(row))
		s.dev.Print(s.buffer[row])
	}
	return nil
}
