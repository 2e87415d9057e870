// Package display draws decode results on a small screen.
//
// Renderer is the drawing surface the recorder talks to. Screen implements it
// for pixel displays (SSD1306) with tinyfont text, CharScreen for HD44780
// character LCDs, and Discard for builds without a display.
package display

import (
	"errors"
	"image/color"
)

// Colors for monochrome displays
var (
	Black = color.RGBA{0, 0, 0, 0}
	White = color.RGBA{255, 255, 255, 255}
)

// Text sizes
const (
	TextSizeSmall  uint8 = 1
	TextSizeMedium uint8 = 2
)

// ErrNotFound is returned when no display answers on the bus.
var ErrNotFound = errors.New("display not found")

// Renderer is a text-oriented drawing surface with a cursor.
// Drawing calls only touch the frame buffer; Display flushes it.
type Renderer interface {
	Size() (width, height int16)
	FillScreen(c color.RGBA)
	SetCursor(x, y int16)
	SetTextSize(size uint8)
	SetTextColor(c color.RGBA)
	// Print draws s at the cursor and advances it. A newline moves the
	// cursor to the start of the next text line.
	Print(s string)
	FillRect(x, y, w, h int16, c color.RGBA)
	Display() error
}

// Discard is a Renderer that draws nothing.
type Discard struct {
	Width, Height int16
}

func (d Discard) Size() (int16, int16) { return d.Width, d.Height }
func (Discard) FillScreen(color.RGBA) {}
func (Discard) SetCursor(int16, int16) {}
func (Discard) SetTextSize(uint8) {}
func (Discard) SetTextColor(color.RGBA) {}
func (Discard) Print(string) {}
func (Discard) FillRect(int16, int16, int16, int16, color.RGBA) {}
func (Discard) Display() error { return nil }
