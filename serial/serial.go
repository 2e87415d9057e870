package serial

import (
	"bytes"
	"log/slog"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/protocol"
)

const (
	discoverQuery = "areyouanirrecord?"
	discoverReply = "areyouanirrecord?yes"
)

// Port is the byte stream the console runs on, usually machine.Serial.
type Port interface {
	ReadByte() (byte, error)
	Write(data []byte) (int, error)
	Buffered() int
}

type Serial struct {
	port     Port
	handler  *protocol.Handler
	log      *slog.Logger
	inIndex  int
	inFrame  bool
	skip     int // bytes left of a dropped frame
	inBuffer [128]byte
}

// NewSerial answers discovery lines on port and passes protocol frames to
// handler. handler may be nil.
func NewSerial(port Port, handler *protocol.Handler, log *slog.Logger) *Serial {
	if log == nil {
		log = slog.Default()
	}
	return &Serial{
		port:    port,
		handler: handler,
		log:     log,
	}
}

// Poll consumes whatever bytes are buffered and returns without blocking.
func (s *Serial) Poll() {
	for s.port.Buffered() > 0 {
		b, err := s.port.ReadByte()
		if err != nil {
			return
		}
		if s.skip > 0 {
			s.skip--
			continue
		}
		if s.inFrame {
			s.readFrame(b)
		} else {
			s.readLine(b)
		}
	}
}

func (s *Serial) readLine(b byte) {
	if s.inIndex == 0 && b == protocol.SyncByte {
		s.inFrame = true
		s.inBuffer[0] = b
		s.inIndex = 1
		return
	}

	if b == '\n' {
		in := string(bytes.TrimRight(s.inBuffer[:s.inIndex], "\r"))
		s.inIndex = 0
		if in == discoverQuery {
			s.write(discoverReply)
		}
		return
	}

	if s.inIndex == len(s.inBuffer) {
		s.inIndex = 0
	}

	s.inBuffer[s.inIndex] = b
	s.inIndex++
}

func (s *Serial) readFrame(b byte) {
	s.inBuffer[s.inIndex] = b
	s.inIndex++

	want := protocol.FrameLen(s.inBuffer[:s.inIndex])
	if want > len(s.inBuffer) {
		s.log.Warn("serial:frame-too-large", slog.Int("len", want))
		s.skip = want - s.inIndex
		s.reset()
		return
	}
	if want == 0 || s.inIndex < want {
		return
	}

	frame, err := protocol.ReadFrame(bytes.NewReader(s.inBuffer[:want]))
	s.reset()
	if err != nil {
		s.log.Warn("serial:bad-frame", slog.String("err", err.Error()))
		if err == protocol.ErrCRCMismatch {
			s.respond(&protocol.Response{Status: protocol.StatusCRCError})
		}
		return
	}

	if s.handler == nil {
		s.respond(&protocol.Response{Status: protocol.StatusInvalidCmd})
		return
	}
	s.respond(s.handler.Handle(frame))
}

func (s *Serial) reset() {
	s.inIndex = 0
	s.inFrame = false
}

func (s *Serial) respond(resp *protocol.Response) {
	if err := protocol.WriteResponse(s.port, resp); err != nil {
		s.log.Error("serial:write", slog.String("err", err.Error()))
	}
}

func (s *Serial) write(out string) {
	s.port.Write([]byte(out + "\n"))
}
