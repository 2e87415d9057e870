// Package config defines the settings and captured-code records kept in flash.
// All structs are fixed size and serialize to little-endian binary.
package config

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// CurrentVersion is the config format version.
// Bump this when making breaking changes to the config format.
// When firmware boots and finds a different version in flash, configs are wiped.
const CurrentVersion uint16 = 1

// Serialized sizes
const (
	SettingsSize   = 16
	CodeRecordSize = 44
	nameSize       = 16
)

// Settings flags
const (
	FlagLogCodes uint32 = 1 << iota // store every decoded code in flash
	FlagPublish                     // publish decoded codes over MQTT
)

// CodeRecord flags
const (
	CodeFlagRepeat uint8 = 1 << iota
	CodeFlagOverflow
)

// Settings are the device-wide options.
// Total size: 16 bytes
// Layout:
//   [0-1]:   Version (uint16)
//   [2-5]:   Flags (uint32)
//   [6-7]:   ClearAfterMs (uint16)
//   [8]:     TolerancePct (uint8)
//   [9]:     TimeoutMs (uint8)
//   [10-11]: MinUnknownSize (uint16)
//   [12-13]: CaptureBufferSize (uint16)
//   [14-15]: Reserved
type Settings struct {
	Version           uint16 // Config format version
	Flags             uint32
	ClearAfterMs      uint16 // idle time after which the next code clears the screen
	TolerancePct      uint8  // IR timing tolerance
	TimeoutMs         uint8  // no-edge time that ends an IR message
	MinUnknownSize    uint16 // shortest raw capture reported as UNKNOWN
	CaptureBufferSize uint16 // capture entries; applied at boot
	Reserved          uint16
}

// CodeRecord is one captured IR code.
// Total size: 44 bytes
// Layout:
//   [0-1]:   Version (uint16)
//   [2]:     Protocol (uint8)
//   [3]:     Flags (uint8)
//   [4-5]:   Bits (uint16)
//   [6-7]:   RawLen (uint16)
//   [8-15]:  Value (uint64)
//   [16-19]: Address (uint32)
//   [20-23]: Command (uint32)
//   [24-27]: Uptime seconds (uint32)
//   [28-43]: Name ([16]byte)
type CodeRecord struct {
	Version  uint16
	Protocol uint8
	Flags    uint8
	Bits     uint16
	RawLen   uint16 // number of raw timing entries captured
	Value    uint64
	Address  uint32
	Command  uint32
	Uptime   uint32   // seconds since boot when captured
	Name     [16]byte // UTF-8 label (null-terminated if shorter)
}

// Errors
var (
	ErrInvalidSize = errors.New("invalid config size")
)

// DefaultSettings returns the settings used on first boot.
func DefaultSettings() Settings {
	return Settings{
		Version:           CurrentVersion,
		ClearAfterMs:      2000,
		TolerancePct:      25,
		TimeoutMs:         90,
		MinUnknownSize:    12,
		CaptureBufferSize: 4096,
	}
}

// ClearAfter returns ClearAfterMs as a duration.
func (s *Settings) ClearAfter() time.Duration {
	return time.Duration(s.ClearAfterMs) * time.Millisecond
}

// Timeout returns TimeoutMs as a duration.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Has reports whether all bits of flag are set.
func (s *Settings) Has(flag uint32) bool {
	return s.Flags&flag == flag
}

// MarshalBinary implements encoding.BinaryMarshaler for Settings.
func (s *Settings) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SettingsSize)
	binary.LittleEndian.PutUint16(buf[0:], s.Version)
	binary.LittleEndian.PutUint32(buf[2:], s.Flags)
	binary.LittleEndian.PutUint16(buf[6:], s.ClearAfterMs)
	buf[8] = s.TolerancePct
	buf[9] = s.TimeoutMs
	binary.LittleEndian.PutUint16(buf[10:], s.MinUnknownSize)
	binary.LittleEndian.PutUint16(buf[12:], s.CaptureBufferSize)
	binary.LittleEndian.PutUint16(buf[14:], s.Reserved)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Settings.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < SettingsSize {
		return ErrInvalidSize
	}

	s.Version = binary.LittleEndian.Uint16(data[0:])
	s.Flags = binary.LittleEndian.Uint32(data[2:])
	s.ClearAfterMs = binary.LittleEndian.Uint16(data[6:])
	s.TolerancePct = data[8]
	s.TimeoutMs = data[9]
	s.MinUnknownSize = binary.LittleEndian.Uint16(data[10:])
	s.CaptureBufferSize = binary.LittleEndian.Uint16(data[12:])
	s.Reserved = binary.LittleEndian.Uint16(data[14:])
	return nil
}

// Marshal writes the CodeRecord to w in binary format.
// Returns the number of bytes written.
func (c *CodeRecord) Marshal(w io.Writer) (int, error) {
	buf, err := c.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

// Unmarshal reads the CodeRecord from r in binary format.
func (c *CodeRecord) Unmarshal(r io.Reader) error {
	buf := make([]byte, CodeRecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return c.UnmarshalBinary(buf)
}

// MarshalBinary implements encoding.BinaryMarshaler for CodeRecord.
func (c *CodeRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CodeRecordSize)
	binary.LittleEndian.PutUint16(buf[0:], c.Version)
	buf[2] = c.Protocol
	buf[3] = c.Flags
	binary.LittleEndian.PutUint16(buf[4:], c.Bits)
	binary.LittleEndian.PutUint16(buf[6:], c.RawLen)
	binary.LittleEndian.PutUint64(buf[8:], c.Value)
	binary.LittleEndian.PutUint32(buf[16:], c.Address)
	binary.LittleEndian.PutUint32(buf[20:], c.Command)
	binary.LittleEndian.PutUint32(buf[24:], c.Uptime)
	copy(buf[28:28+nameSize], c.Name[:])
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for CodeRecord.
func (c *CodeRecord) UnmarshalBinary(data []byte) error {
	if len(data) < CodeRecordSize {
		return ErrInvalidSize
	}

	c.Version = binary.LittleEndian.Uint16(data[0:])
	c.Protocol = data[2]
	c.Flags = data[3]
	c.Bits = binary.LittleEndian.Uint16(data[4:])
	c.RawLen = binary.LittleEndian.Uint16(data[6:])
	c.Value = binary.LittleEndian.Uint64(data[8:])
	c.Address = binary.LittleEndian.Uint32(data[16:])
	c.Command = binary.LittleEndian.Uint32(data[20:])
	c.Uptime = binary.LittleEndian.Uint32(data[24:])
	copy(c.Name[:], data[28:28+nameSize])
	return nil
}

// GetName returns the code label as a string (up to null terminator).
func (c *CodeRecord) GetName() string {
	for i, b := range c.Name {
		if b == 0 {
			return string(c.Name[:i])
		}
	}
	return string(c.Name[:])
}

// SetName sets the code label from a string.
// If the name is longer than 15 bytes, it is truncated.
// The name is always null-terminated.
func (c *CodeRecord) SetName(name string) {
	b := []byte(name)
	if len(b) > nameSize-1 {
		b = b[:nameSize-1]
	}
	c.Name = [nameSize]byte{}
	copy(c.Name[:], b)
}
