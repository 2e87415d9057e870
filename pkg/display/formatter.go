package display

import (
	"fmt"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/ir"
)

// ResultFormatter formats decode results as the short lines shown on screen.
type ResultFormatter struct{}

// NewResultFormatter creates a new result formatter.
func NewResultFormatter() *ResultFormatter {
	return &ResultFormatter{}
}

// Lines returns the lines to draw for res, each without a trailing newline.
// Address and command are left out when zero; not every protocol has them.
//
//	Protocol: NEC
//	Code    : 0x20DF40BF
//	Address : 0x04FB (4)
//	Command : 0x02FD (2)
func (f *ResultFormatter) Lines(res *ir.Result) []string {
	lines := make([]string, 0, 4)
	lines = append(lines, f.FormatProtocol(res), f.FormatCode(res))
	if res.Address > 0 {
		lines = append(lines, "Address : "+FormatPair(res.Address))
	}
	if res.Command > 0 {
		lines = append(lines, "Command : "+FormatPair(res.Command))
	}
	return lines
}

// FormatProtocol formats the protocol line, e.g. "Protocol: NEC".
func (f *ResultFormatter) FormatProtocol(res *ir.Result) string {
	return "Protocol: " + ir.TypeToString(res.Protocol, res.Repeat)
}

// FormatCode formats the code line, e.g. "Code    : 0x20DF40BF".
func (f *ResultFormatter) FormatCode(res *ir.Result) string {
	return "Code    : " + ir.Hex(res)
}

// FormatPair shows an 8-bit value next to its inverse, the way NEC style
// remotes transmit it, followed by the decimal value: 4 becomes "0x04FB (4)".
// Wider values have no inverse byte and are shown as "0x7B04 (31492)".
func FormatPair(v uint32) string {
	if v > 0xFF {
		return fmt.Sprintf("0x%04X (%d)", v, v)
	}
	return fmt.Sprintf("0x%02X%02X (%d)", v, 0xFF-v, v)
}
