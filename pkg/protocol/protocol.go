// Package protocol implements the binary serial protocol spoken with the PC app.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Responses use the same layout with a status byte in place of CMD.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/storage"
)

const (
	SyncByte = 0xAA

	// HeaderSize is SYNC + CMD + LEN, TrailerSize the CRC.
	HeaderSize  = 4
	TrailerSize = 2

	// MaxPayload bounds LEN on incoming frames.
	MaxPayload = 4096

	// Command codes (PC → Device)
	CmdGetSettings     = 0x01
	CmdSetSettings     = 0x02
	CmdGetCode         = 0x03
	CmdNameCode        = 0x04
	CmdDeleteCode      = 0x05
	CmdListCodes       = 0x06
	CmdGetStorageStats = 0x07
	CmdPing            = 0x08
	CmdFactoryReset    = 0x09
	CmdGetVersion      = 0x10
	CmdGetLastCode     = 0x11

	// Response status codes (Device → PC)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusNotFound        = 0x04
	StatusNoSpace         = 0x05
	StatusVersionMismatch = 0x06
	StatusCRCError        = 0x07
)

// Firmware version reported by CmdGetVersion.
const (
	FirmwareMajor = 0
	FirmwareMinor = 2
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
)

// Live is the running recorder as seen by the protocol.
type Live interface {
	// LastCode returns the most recent decoded code, if any.
	LastCode() (config.CodeRecord, bool)
	// ApplySettings makes s take effect without a reboot.
	ApplySettings(s config.Settings)
}

// Handler processes protocol commands.
type Handler struct {
	storage *storage.Manager
	live    Live
}

// NewHandler creates a new protocol handler. live may be nil.
func NewHandler(sm *storage.Manager, live Live) *Handler {
	return &Handler{
		storage: sm,
		live:    live,
	}
}

// Frame represents a protocol frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a protocol response.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates a frame from the reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	sync := make([]byte, 1)
	if _, err := io.ReadFull(r, sync); err != nil {
		return nil, err
	}
	if sync[0] != SyncByte {
		return nil, ErrInvalidFrame
	}

	// cmd + len
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	cmd := header[0]
	length := binary.LittleEndian.Uint16(header[1:])
	if length > MaxPayload {
		return nil, ErrInvalidFrame
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	crcBytes := make([]byte, 2)
	if _, err := io.ReadFull(r, crcBytes); err != nil {
		return nil, err
	}
	receivedCRC := binary.LittleEndian.Uint16(crcBytes)

	if receivedCRC != calcCRC(append(header, payload...)) {
		return nil, ErrCRCMismatch
	}

	return &Frame{
		Cmd:     cmd,
		Payload: payload,
	}, nil
}

// FrameLen returns the full length of the frame starting at buf[0], or 0 if
// the header is not complete yet.
func FrameLen(buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}
	return HeaderSize + int(binary.LittleEndian.Uint16(buf[2:])) + TrailerSize
}

// WriteResponse writes a response frame to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	_, err := w.Write(encode(resp.Status, resp.Payload))
	return err
}

// WriteFrame writes a request frame (for testing/PC side).
func WriteFrame(w io.Writer, frame *Frame) error {
	_, err := w.Write(encode(frame.Cmd, frame.Payload))
	return err
}

// encode builds [SYNC][code][LEN][payload][CRC].
func encode(code uint8, payload []byte) []byte {
	n := len(payload)
	buf := make([]byte, HeaderSize, HeaderSize+n+TrailerSize)
	buf[0] = SyncByte
	buf[1] = code
	binary.LittleEndian.PutUint16(buf[2:], uint16(n))
	buf = append(buf, payload...)

	// CRC skips the sync byte
	return binary.LittleEndian.AppendUint16(buf, calcCRC(buf[1:]))
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	switch frame.Cmd {
	case CmdPing:
		return h.handlePing(frame.Payload)
	case CmdGetSettings:
		return h.handleGetSettings()
	case CmdSetSettings:
		return h.handleSetSettings(frame.Payload)
	case CmdGetCode:
		return h.handleGetCode(frame.Payload)
	case CmdNameCode:
		return h.handleNameCode(frame.Payload)
	case CmdDeleteCode:
		return h.handleDeleteCode(frame.Payload)
	case CmdListCodes:
		return h.handleListCodes()
	case CmdGetStorageStats:
		return h.handleGetStorageStats()
	case CmdFactoryReset:
		return h.handleFactoryReset()
	case CmdGetVersion:
		return h.handleGetVersion()
	case CmdGetLastCode:
		return h.handleGetLastCode()
	default:
		return &Response{Status: StatusInvalidCmd}
	}
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetSettings returns the stored settings, or the defaults when
// nothing has been saved yet.
func (h *Handler) handleGetSettings() *Response {
	s := config.DefaultSettings()
	if h.storage.LoadSettings(&s) != nil {
		s = config.DefaultSettings()
	}

	data, err := s.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetSettings stores new settings and applies them.
// Payload: [Settings:16 bytes]
func (h *Handler) handleSetSettings(payload []byte) *Response {
	if len(payload) != config.SettingsSize {
		return &Response{Status: StatusInvalidData}
	}

	var s config.Settings
	if err := s.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if s.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}

	if err := h.storage.SaveSettings(&s); err != nil {
		if err == storage.ErrFlashFull {
			return &Response{Status: StatusNoSpace}
		}
		return &Response{Status: StatusError}
	}

	if h.live != nil {
		h.live.ApplySettings(s)
	}

	return &Response{Status: StatusOK}
}

// handleGetCode returns a stored code by slot number.
// Payload: [Slot:1 byte]
func (h *Handler) handleGetCode(payload []byte) *Response {
	if len(payload) != 1 {
		return &Response{Status: StatusInvalidData}
	}

	var code config.CodeRecord
	if err := h.storage.LoadCode(payload[0], &code); err != nil {
		return errorResponse(err)
	}

	data, err := code.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleNameCode labels a stored code.
// Payload: [Slot:1 byte][Name:0-15 bytes]
func (h *Handler) handleNameCode(payload []byte) *Response {
	if len(payload) < 1 || len(payload) > 16 {
		return &Response{Status: StatusInvalidData}
	}

	slot := payload[0]

	var code config.CodeRecord
	if err := h.storage.LoadCode(slot, &code); err != nil {
		return errorResponse(err)
	}

	code.SetName(string(payload[1:]))

	if err := h.storage.SaveCode(slot, &code); err != nil {
		return errorResponse(err)
	}

	return &Response{Status: StatusOK}
}

// handleDeleteCode removes a code from a slot.
// Payload: [Slot:1 byte]
func (h *Handler) handleDeleteCode(payload []byte) *Response {
	if len(payload) != 1 {
		return &Response{Status: StatusInvalidData}
	}

	if err := h.storage.DeleteCode(payload[0]); err != nil {
		return errorResponse(err)
	}

	return &Response{Status: StatusOK}
}

// handleListCodes returns all occupied code slots.
// Response: [Count:1 byte][Slot1:1 byte][Slot2:1 byte]...
func (h *Handler) handleListCodes() *Response {
	slots, err := h.storage.ListCodes()
	if err != nil {
		return &Response{Status: StatusError}
	}

	payload := make([]byte, 1+len(slots))
	payload[0] = uint8(len(slots))
	copy(payload[1:], slots)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetStorageStats returns storage statistics.
// Response: [Total:4][Used:4][Free:4][CodeCount:1]
func (h *Handler) handleGetStorageStats() *Response {
	stats, err := h.storage.GetStats()
	if err != nil {
		return &Response{Status: StatusError}
	}

	payload := make([]byte, 13)
	binary.LittleEndian.PutUint32(payload[0:], uint32(stats.TotalSpace))
	binary.LittleEndian.PutUint32(payload[4:], uint32(stats.UsedSpace))
	binary.LittleEndian.PutUint32(payload[8:], uint32(stats.FreeSpace))
	payload[12] = uint8(stats.CodeCount)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleFactoryReset wipes settings and codes and reverts to the defaults.
func (h *Handler) handleFactoryReset() *Response {
	if err := h.storage.ForceWipe(); err != nil {
		return &Response{Status: StatusError}
	}
	if h.live != nil {
		h.live.ApplySettings(config.DefaultSettings())
	}
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and config version info.
// Response: [FirmwareVersionMajor:1][FirmwareVersionMinor:1][ConfigVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetLastCode returns the most recently decoded code.
// Response: [CodeRecord:44 bytes]
func (h *Handler) handleGetLastCode() *Response {
	if h.live == nil {
		return &Response{Status: StatusNotFound}
	}
	code, ok := h.live.LastCode()
	if !ok {
		return &Response{Status: StatusNotFound}
	}

	data, err := code.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// errorResponse maps storage errors to status codes.
func errorResponse(err error) *Response {
	switch err {
	case storage.ErrCodeNotFound:
		return &Response{Status: StatusNotFound}
	case storage.ErrInvalidSlot:
		return &Response{Status: StatusInvalidData}
	case storage.ErrFlashFull, storage.ErrLogFull:
		return &Response{Status: StatusNoSpace}
	}
	return &Response{Status: StatusError}
}

// calcCRC calculates CRC16-CCITT.
// Polynomial: 0x1021, Initial: 0xFFFF
func calcCRC(data []byte) uint16 {
	var crc uint16 = 0xFFFF

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
