package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/display"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/ir"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeDecoder hands out queued results, one per Decode call.
type fakeDecoder struct {
	queue []ir.Result
}

func (d *fakeDecoder) Decode(res *ir.Result) bool {
	if len(d.queue) == 0 {
		return false
	}
	*res = d.queue[0]
	d.queue = d.queue[1:]
	return true
}

// fakeRenderer records drawing calls.
type fakeRenderer struct {
	calls []string
	text  strings.Builder
}

func (f *fakeRenderer) Size() (int16, int16) { return 128, 64 }

func (f *fakeRenderer) FillScreen(c color.RGBA) {
	f.calls = append(f.calls, fmt.Sprintf("FillScreen(%v)", c == display.White))
	f.text.Reset()
}

func (f *fakeRenderer) SetCursor(x, y int16) {
	f.calls = append(f.calls, fmt.Sprintf("SetCursor(%d,%d)", x, y))
}

func (f *fakeRenderer) SetTextSize(size uint8) {
	f.calls = append(f.calls, fmt.Sprintf("SetTextSize(%d)", size))
}

func (f *fakeRenderer) SetTextColor(c color.RGBA) {}

func (f *fakeRenderer) Print(s string) {
	f.calls = append(f.calls, "Print")
	f.text.WriteString(s)
}

func (f *fakeRenderer) FillRect(x, y, w, h int16, c color.RGBA) {
	f.calls = append(f.calls, fmt.Sprintf("FillRect(%d,%d,%d,%d)", x, y, w, h))
}

func (f *fakeRenderer) Display() error {
	f.calls = append(f.calls, "Display")
	return nil
}

func (f *fakeRenderer) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeRenderer) reset() {
	f.calls = nil
}

type fakeStore struct {
	codes []config.CodeRecord
	err   error
}

func (s *fakeStore) AppendCode(code *config.CodeRecord) (uint8, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.codes = append(s.codes, *code)
	return uint8(len(s.codes) - 1), nil
}

type fakeSink struct {
	events []time.Duration
}

func (s *fakeSink) Publish(res *ir.Result, uptime time.Duration) bool {
	s.events = append(s.events, uptime)
	return true
}

var (
	necResult     = ir.Result{Protocol: ir.NEC, Value: 0x20DF40BF, Address: 0x04, Command: 0x02, Bits: 32, Raw: make([]uint16, 67)}
	samsungResult = ir.Result{Protocol: ir.Samsung, Value: 0xE0E040BF, Address: 0x07, Command: 0x02, Bits: 32, Raw: make([]uint16, 67)}
	repeatResult  = ir.Result{Protocol: ir.NEC, Value: ir.RepeatValue, Repeat: true, Raw: make([]uint16, 3)}
)

type harness struct {
	clock *fakeClock
	dec   *fakeDecoder
	disp  *fakeRenderer
	dump  *bytes.Buffer
	logs  *bytes.Buffer
	rec   *Recorder
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		clock: &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		dec:   &fakeDecoder{},
		disp:  &fakeRenderer{},
		dump:  &bytes.Buffer{},
		logs:  &bytes.Buffer{},
	}
	cfg := Config{
		Decoder:  h.dec,
		Display:  h.disp,
		Dump:     h.dump,
		Logger:   slog.New(slog.NewTextHandler(h.logs, nil)),
		Settings: config.DefaultSettings(),
		Now:      h.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.rec = New(cfg)
	require.NoError(t, h.rec.Start())
	h.disp.reset()
	return h
}

func TestStartDrawsWaitingScreen(t *testing.T) {
	disp := &fakeRenderer{}
	clock := &fakeClock{t: time.Unix(100, 0)}
	rec := New(Config{Decoder: &fakeDecoder{}, Display: disp, Now: clock.Now})

	require.NoError(t, rec.Start())

	assert.Equal(t, "Waiting\nfor\nIR Code...\n", disp.text.String())
	assert.Contains(t, disp.calls, "SetTextSize(2)")
	assert.Equal(t, "Display", disp.calls[len(disp.calls)-1])
	assert.Equal(t, clock.t, rec.State().LastUpdate)
}

func TestFirstCodeWithinTimeoutAppends(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(2000 * time.Millisecond)
	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()

	assert.Zero(t, h.disp.count("FillScreen(false)"), "2000ms is not past the threshold")
	assert.Contains(t, h.disp.text.String(), "Waiting\nfor\nIR Code...\n")
	assert.Contains(t, h.disp.text.String(), "Protocol: NEC\n")
}

func TestCodeAfterTimeoutClears(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(2001 * time.Millisecond)
	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()

	require.GreaterOrEqual(t, len(h.disp.calls), 2)
	assert.Equal(t, "FillScreen(false)", h.disp.calls[0])
	assert.Equal(t, "SetCursor(0,0)", h.disp.calls[1])
	assert.Equal(t, "Protocol: NEC\nCode    : 0x20DF40BF\nAddress : 0x04FB (4)\nCommand : 0x02FD (2)\n", h.disp.text.String())
	assert.Equal(t, h.clock.t, h.rec.State().LastUpdate)
}

func TestRapidCodesAppend(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(3 * time.Second)
	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()

	h.clock.Advance(500 * time.Millisecond)
	h.dec.queue = append(h.dec.queue, samsungResult)
	h.rec.Poll()

	assert.Equal(t, 1, h.disp.count("FillScreen(false)"))
	text := h.disp.text.String()
	assert.Contains(t, text, "Protocol: NEC\n")
	assert.Contains(t, text, "Protocol: SAMSUNG\n")
	assert.Less(t, strings.Index(text, "NEC"), strings.Index(text, "SAMSUNG"))
}

func TestIdleIndicator(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(2000 * time.Millisecond)
	h.rec.Poll()
	assert.Empty(t, h.disp.calls, "no indicator at exactly the threshold")

	h.clock.Advance(time.Millisecond)
	h.rec.Poll()
	assert.Equal(t, []string{"FillRect(126,62,2,2)", "Display"}, h.disp.calls)

	h.rec.Poll()
	assert.Equal(t, 2, h.disp.count("FillRect(126,62,2,2)"), "drawn once per idle check")
}

func TestIndicatorStopsAfterRender(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(3 * time.Second)
	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()
	h.disp.reset()

	h.clock.Advance(time.Second)
	h.rec.Poll()
	assert.Empty(t, h.disp.calls)
}

func TestRepeatNeverRenders(t *testing.T) {
	h := newHarness(t, nil)
	before := h.rec.State().LastUpdate

	h.clock.Advance(500 * time.Millisecond)
	h.dec.queue = append(h.dec.queue, repeatResult)
	h.rec.Poll()

	assert.Empty(t, h.disp.calls)
	assert.Empty(t, h.dump.String())
	assert.Equal(t, before, h.rec.State().LastUpdate)
	_, ok := h.rec.LastCode()
	assert.False(t, ok)
}

func TestRepeatWhileIdleShowsIndicator(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(3 * time.Second)
	h.dec.queue = append(h.dec.queue, repeatResult)
	h.rec.Poll()

	assert.Equal(t, []string{"FillRect(126,62,2,2)", "Display"}, h.disp.calls)
}

func TestOverflowRendersAndWarns(t *testing.T) {
	h := newHarness(t, nil)

	res := necResult
	res.Overflow = true
	h.clock.Advance(3 * time.Second)
	h.dec.queue = append(h.dec.queue, res)
	h.rec.Poll()

	assert.Contains(t, h.disp.text.String(), "Protocol: NEC\n")
	assert.Contains(t, h.dump.String(), "WARNING: IR code is too big for buffer (>= 4096)")
	assert.Contains(t, h.logs.String(), "level=WARN msg=ir:overflow")

	code, ok := h.rec.LastCode()
	require.True(t, ok)
	assert.Equal(t, config.CodeFlagOverflow, code.Flags)
}

func TestDumpFormat(t *testing.T) {
	h := newHarness(t, nil)

	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()

	dump := h.dump.String()
	assert.True(t, strings.HasPrefix(dump, "[====== IRRecord - BEGIN ======]\n"))
	assert.True(t, strings.HasSuffix(dump, "[====== IRRecord - END ======]\n"))
	assert.Contains(t, dump, "[HumanReadable]:\nProtocol  : NEC\nCode      : 0x20DF40BF (32 Bits)\n")
	assert.Contains(t, dump, "[SourceCode]:\nrawData := [67]uint16{")
	assert.Contains(t, dump, "Address: 0x04FB (4)\n")
	assert.Contains(t, dump, "Command: 0x02FD (2)\n")
	assert.Contains(t, dump, "Value  : 0x0000000020DF40BF\n")
	assert.NotContains(t, dump, "Tolerance")
}

func TestDumpToleranceLine(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Settings.TolerancePct = 40 })

	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()

	assert.Contains(t, h.dump.String(), "Tolerance : 40%\n")
}

func TestLastCode(t *testing.T) {
	h := newHarness(t, nil)

	h.clock.Advance(90 * time.Second)
	h.dec.queue = append(h.dec.queue, samsungResult)
	h.rec.Poll()

	code, ok := h.rec.LastCode()
	require.True(t, ok)
	assert.Equal(t, uint8(ir.Samsung), code.Protocol)
	assert.Equal(t, uint64(0xE0E040BF), code.Value)
	assert.Equal(t, uint32(7), code.Address)
	assert.Equal(t, uint16(67), code.RawLen)
	assert.Equal(t, uint32(90), code.Uptime)
}

func TestStoreOnlyWhenLogging(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(t, func(c *Config) { c.Store = store })

	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()
	assert.Empty(t, store.codes)

	s := config.DefaultSettings()
	s.Flags = config.FlagLogCodes
	h.rec.ApplySettings(s)

	h.dec.queue = append(h.dec.queue, samsungResult)
	h.rec.Poll()
	require.Len(t, store.codes, 1)
	assert.Equal(t, uint64(0xE0E040BF), store.codes[0].Value)
}

func TestStoreErrorLogged(t *testing.T) {
	store := &fakeStore{err: errors.New("code log full")}
	h := newHarness(t, func(c *Config) {
		c.Store = store
		c.Settings.Flags = config.FlagLogCodes
	})

	h.dec.queue = append(h.dec.queue, necResult)
	h.rec.Poll()

	assert.Contains(t, h.logs.String(), "store:append-failed")
	assert.Contains(t, h.disp.text.String(), "Protocol: NEC\n")
}

func TestPublishWhenEnabled(t *testing.T) {
	sink := &fakeSink{}
	h := newHarness(t, func(c *Config) {
		c.Sink = sink
		c.Settings.Flags = config.FlagPublish
	})

	h.clock.Advance(1500 * time.Millisecond)
	h.dec.queue = append(h.dec.queue, necResult, repeatResult)
	h.rec.Poll()
	h.rec.Poll()

	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, sink.events)
}

func TestApplySettingsChangesClearTimeout(t *testing.T) {
	h := newHarness(t, nil)

	s := config.DefaultSettings()
	s.ClearAfterMs = 500
	h.rec.ApplySettings(s)

	h.clock.Advance(501 * time.Millisecond)
	h.rec.Poll()
	assert.Equal(t, 1, h.disp.count("FillRect(126,62,2,2)"))

	// zero falls back to the default
	s.ClearAfterMs = 0
	h.rec.ApplySettings(s)
	assert.Equal(t, uint16(2000), h.rec.Settings().ClearAfterMs)
}
