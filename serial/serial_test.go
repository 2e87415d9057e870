package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/protocol"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/storage"

	"tinygo.org/x/tinyfs"
)

type fakePort struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (p *fakePort) ReadByte() (byte, error) {
	b, err := p.in.ReadByte()
	if err != nil {
		return 0, errors.New("empty")
	}
	return b, nil
}

func (p *fakePort) Write(data []byte) (int, error) { return p.out.Write(data) }

func (p *fakePort) Buffered() int { return p.in.Len() }

func newTestSerial(t *testing.T) (*Serial, *fakePort) {
	mgr, err := storage.New(tinyfs.NewMemoryDevice(256, 4096, 64), true)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	port := &fakePort{}
	return NewSerial(port, protocol.NewHandler(mgr, nil), nil), port
}

func TestDiscover(t *testing.T) {
	s, port := newTestSerial(t)

	port.in.WriteString("areyouanirrecord?\r\n")
	s.Poll()

	if got := port.out.String(); got != "areyouanirrecord?yes\n" {
		t.Errorf("Expected discovery reply, got %q", got)
	}
}

func TestUnknownLineIgnored(t *testing.T) {
	s, port := newTestSerial(t)

	port.in.WriteString("hello\n")
	s.Poll()

	if port.out.Len() != 0 {
		t.Errorf("Expected no reply, got %q", port.out.String())
	}
}

func TestPartialLineAcrossPolls(t *testing.T) {
	s, port := newTestSerial(t)

	port.in.WriteString("areyouan")
	s.Poll()
	if port.out.Len() != 0 {
		t.Fatalf("Replied before newline: %q", port.out.String())
	}

	port.in.WriteString("irrecord?\n")
	s.Poll()
	if got := port.out.String(); got != "areyouanirrecord?yes\n" {
		t.Errorf("Expected discovery reply, got %q", got)
	}
}

func TestFrameDispatch(t *testing.T) {
	s, port := newTestSerial(t)

	protocol.WriteFrame(&port.in, &protocol.Frame{Cmd: protocol.CmdPing, Payload: []byte{1, 2, 3}})
	// split delivery
	all := port.in.Bytes()
	first := append([]byte(nil), all[:3]...)
	rest := append([]byte(nil), all[3:]...)
	port.in.Reset()

	port.in.Write(first)
	s.Poll()
	if port.out.Len() != 0 {
		t.Fatalf("Replied to a partial frame")
	}

	port.in.Write(rest)
	s.Poll()

	resp, err := protocol.ReadFrame(&port.out)
	if err != nil {
		t.Fatalf("ReadFrame on reply failed: %v", err)
	}
	if resp.Cmd != protocol.StatusOK {
		t.Errorf("Expected StatusOK, got 0x%x", resp.Cmd)
	}
	if !bytes.Equal(resp.Payload, []byte{1, 2, 3}) {
		t.Errorf("Expected echo, got %v", resp.Payload)
	}
}

func TestFrameCRCError(t *testing.T) {
	s, port := newTestSerial(t)

	port.in.Write([]byte{protocol.SyncByte, protocol.CmdPing, 0, 0, 0xFF, 0xFF})
	s.Poll()

	resp, err := protocol.ReadFrame(&port.out)
	if err != nil {
		t.Fatalf("ReadFrame on reply failed: %v", err)
	}
	if resp.Cmd != protocol.StatusCRCError {
		t.Errorf("Expected StatusCRCError, got 0x%x", resp.Cmd)
	}
}

func TestOversizedFrameDropped(t *testing.T) {
	s, port := newTestSerial(t)

	// 256 byte payload, larger than the console buffer
	port.in.Write([]byte{protocol.SyncByte, protocol.CmdPing, 0x00, 0x01})
	s.Poll()
	if port.out.Len() != 0 {
		t.Fatalf("Expected no reply, got % x", port.out.Bytes())
	}

	// The dropped body starts with what looks like a ping frame.
	var body bytes.Buffer
	if err := protocol.WriteFrame(&body, &protocol.Frame{Cmd: protocol.CmdPing}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	body.Write(make([]byte, 256+protocol.TrailerSize-body.Len()))

	// split across polls
	port.in.Write(body.Bytes()[:100])
	s.Poll()
	port.in.Write(body.Bytes()[100:])
	s.Poll()
	if port.out.Len() != 0 {
		t.Fatalf("Expected dropped body to be skipped, got % x", port.out.Bytes())
	}

	// console is back in line mode
	port.in.WriteString("areyouanirrecord?\n")
	s.Poll()
	if got := port.out.String(); got != "areyouanirrecord?yes\n" {
		t.Errorf("Expected discovery reply, got %q", got)
	}
}
