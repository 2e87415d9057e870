// Package ir captures infrared pulse trains and turns them into decode results.
//
// A Receiver is fed mark and space durations (from a pin interrupt on the
// device, or directly in tests). Once no edge has been seen for the configured
// timeout, Decode hands back the captured message classified as NEC, Samsung
// or an UNKNOWN hash of the raw timings.
package ir

import "time"

// Protocol identifies the IR protocol family of a decode result.
type Protocol uint8

const (
	Unknown Protocol = iota
	NEC
	Samsung
)

// String returns the upper-case protocol name.
func (p Protocol) String() string {
	switch p {
	case NEC:
		return "NEC"
	case Samsung:
		return "SAMSUNG"
	default:
		return "UNKNOWN"
	}
}

// RepeatValue is stored in Result.Value for NEC repeat frames.
const RepeatValue uint64 = 0xFFFFFFFFFFFFFFFF

// Defaults for Config.
const (
	DefaultBufferSize     = 4096
	DefaultTimeout        = 90 * time.Millisecond
	DefaultTolerance      = 25
	DefaultMinUnknownSize = 12
)

// Result is one decoded IR message.
// It is only valid until the next call to Receiver.Decode overwrites it.
type Result struct {
	Protocol Protocol
	Value    uint64
	Address  uint32
	Command  uint32
	Bits     uint16
	// Raw holds alternating mark/space durations in microseconds,
	// starting and ending with a mark.
	Raw      []uint16
	Overflow bool
	Repeat   bool
}

// Config controls capture and decoding.
type Config struct {
	BufferSize     int           // capture entries (marks + spaces)
	Timeout        time.Duration // no-edge time that ends a message
	Tolerance      uint8         // timing tolerance in percent
	MinUnknownSize int           // smallest raw length reported as UNKNOWN
}

// DefaultConfig returns the capture settings used when nothing is stored.
func DefaultConfig() Config {
	return Config{
		BufferSize:     DefaultBufferSize,
		Timeout:        DefaultTimeout,
		Tolerance:      DefaultTolerance,
		MinUnknownSize: DefaultMinUnknownSize,
	}
}
