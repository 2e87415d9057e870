package display

import (
	"image/color"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
	"tinygo.org/x/tinyfont/proggy"
)

// Pixels is a buffered monochrome pixel display such as ssd1306.Device.
type Pixels interface {
	Size() (x, y int16)
	SetPixel(x, y int16, c color.RGBA)
	Display() error
}

type textStyle struct {
	font   tinyfont.Fonter
	height int16 // line advance
	ascent int16 // cursor top to baseline
}

// Small text packs eight lines onto a 64 px panel.
var smallStyle = textStyle{font: &proggy.TinySZ8pt7b, height: 8, ascent: 6}

func styleFor(size uint8) textStyle {
	if size < TextSizeMedium {
		return smallStyle
	}
	var f tinyfont.Fonter = &freemono.Regular9pt7b
	h := int16(f.GetYAdvance())
	return textStyle{font: f, height: h, ascent: h - h/4}
}

// Screen renders text and rectangles on a pixel display.
// The cursor marks the top-left corner of the next glyph.
type Screen struct {
	dev    Pixels
	width  int16
	height int16

	x, y  int16
	style textStyle
	color color.RGBA
}

// NewScreen wraps dev with small white text and the cursor at the origin.
func NewScreen(dev Pixels) *Screen {
	w, h := dev.Size()
	return &Screen{
		dev:    dev,
		width:  w,
		height: h,
		style:  styleFor(TextSizeSmall),
		color:  White,
	}
}

func (s *Screen) Size() (int16, int16) {
	return s.width, s.height
}

// Cursor returns the current cursor position.
func (s *Screen) Cursor() (x, y int16) {
	return s.x, s.y
}

// LineHeight returns the line advance of the current text size.
func (s *Screen) LineHeight() int16 {
	return s.style.height
}

func (s *Screen) FillScreen(c color.RGBA) {
	s.FillRect(0, 0, s.width, s.height, c)
}

func (s *Screen) SetCursor(x, y int16) {
	s.x, s.y = x, y
}

func (s *Screen) SetTextSize(size uint8) {
	s.style = styleFor(size)
}

func (s *Screen) SetTextColor(c color.RGBA) {
	s.color = c
}

// Print draws str at the cursor. Glyphs that would cross the right edge
// wrap to the next line.
func (s *Screen) Print(str string) {
	for _, r := range str {
		if r == '\n' {
			s.newline()
			continue
		}
		if r == '\r' {
			continue
		}
		adv := int16(s.style.font.GetGlyph(r).Info().XAdvance)
		if s.x > 0 && s.x+adv > s.width {
			s.newline()
		}
		tinyfont.DrawChar(s.dev, s.style.font, s.x, s.y+s.style.ascent, r, s.color)
		s.x += adv
	}
}

func (s *Screen) newline() {
	s.x = 0
	s.y += s.style.height
}

// FillRect fills the rectangle clipped to the screen.
func (s *Screen) FillRect(x, y, w, h int16, c color.RGBA) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, s.width), min(y+h, s.height)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			s.dev.SetPixel(px, py, c)
		}
	}
}

func (s *Screen) Display() error {
	return s.dev.Display()
}

// PixelConfig describes an SSD1306 OLED on I2C.
type PixelConfig struct {
	Address uint16
	Width   int16
	Height  int16
}

// DefaultPixelConfig is the common 128x64 module at 0x3C.
func DefaultPixelConfig() PixelConfig {
	return PixelConfig{
		Address: 0x3C,
		Width:   128,
		Height:  64,
	}
}
