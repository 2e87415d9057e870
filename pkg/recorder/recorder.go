// Package recorder ties the IR decoder to the display and the serial dump.
//
// Each Poll either shows a newly decoded code or, once the screen has gone
// stale, marks the bottom-right corner to say the next code starts a fresh
// screen. Codes that arrive before the screen goes stale are appended below
// what is already shown, so multi-code button presses stay visible together.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/display"
	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/ir"
)

const (
	dumpBegin = "[====== IRRecord - BEGIN ======]"
	dumpEnd   = "[====== IRRecord - END ======]"

	// indicatorSize is the side of the idle square in pixels.
	indicatorSize = 2
)

// Decoder yields decoded IR messages. Decode fills res and returns true when
// a message is available.
type Decoder interface {
	Decode(res *ir.Result) bool
}

// CodeStore keeps decoded codes, e.g. *storage.Manager.
type CodeStore interface {
	AppendCode(code *config.CodeRecord) (uint8, error)
}

// Sink receives every shown code, e.g. *publish.Queue.
type Sink interface {
	Publish(res *ir.Result, uptime time.Duration) bool
}

// State is the display bookkeeping carried between polls.
type State struct {
	// LastUpdate is when the display last showed new content.
	LastUpdate time.Time
}

type Config struct {
	Decoder  Decoder
	Display  display.Renderer
	Dump     io.Writer // verbose decode output, usually the serial port
	Logger   *slog.Logger
	Settings config.Settings
	Store    CodeStore // optional
	Sink     Sink      // optional
	Now      func() time.Time
}

type Recorder struct {
	dec       Decoder
	disp      display.Renderer
	dump      io.Writer
	log       *slog.Logger
	store     CodeStore
	sink      Sink
	now       func() time.Time
	formatter *display.ResultFormatter

	settings config.Settings
	state    State
	boot     time.Time

	res     ir.Result
	last    config.CodeRecord
	hasLast bool
}

func New(cfg Config) *Recorder {
	r := &Recorder{
		dec:       cfg.Decoder,
		disp:      cfg.Display,
		dump:      cfg.Dump,
		log:       cfg.Logger,
		store:     cfg.Store,
		sink:      cfg.Sink,
		now:       cfg.Now,
		formatter: display.NewResultFormatter(),
		settings:  cfg.Settings,
	}
	if r.dump == nil {
		r.dump = io.Discard
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.settings.ClearAfterMs == 0 {
		r.settings.ClearAfterMs = config.DefaultSettings().ClearAfterMs
	}
	r.boot = r.now()
	return r
}

// Start shows the waiting screen. The idle clock starts here.
func (r *Recorder) Start() error {
	r.disp.FillScreen(display.Black)
	r.disp.SetTextSize(display.TextSizeMedium)
	r.disp.SetTextColor(display.White)
	r.disp.SetCursor(0, 0)
	r.disp.Print("Waiting\nfor\nIR Code...\n")
	err := r.disp.Display()
	r.state.LastUpdate = r.now()
	return err
}

// Poll runs one iteration of the main loop.
func (r *Recorder) Poll() {
	now := r.now()

	if r.dec.Decode(&r.res) && !r.res.Repeat {
		r.handle(&r.res, now)
		return
	}

	if r.stale(now) {
		r.idle()
	}
}

// State returns a copy of the display bookkeeping.
func (r *Recorder) State() State {
	return r.state
}

// Settings returns the settings in effect.
func (r *Recorder) Settings() config.Settings {
	return r.settings
}

// ApplySettings switches to s. The clear timeout and the flags take effect
// on the next Poll; receiver timing is fixed at boot.
func (r *Recorder) ApplySettings(s config.Settings) {
	if s.ClearAfterMs == 0 {
		s.ClearAfterMs = config.DefaultSettings().ClearAfterMs
	}
	r.settings = s
	r.log.Info("recorder:settings",
		slog.Int("clearAfterMs", int(s.ClearAfterMs)),
		slog.Bool("logCodes", s.Has(config.FlagLogCodes)),
		slog.Bool("publish", s.Has(config.FlagPublish)),
	)
}

// LastCode returns the most recently shown code.
func (r *Recorder) LastCode() (config.CodeRecord, bool) {
	return r.last, r.hasLast
}

func (r *Recorder) stale(now time.Time) bool {
	return now.Sub(r.state.LastUpdate) > r.settings.ClearAfter()
}

func (r *Recorder) handle(res *ir.Result, now time.Time) {
	r.log.Info("ir:decoded",
		slog.String("protocol", res.Protocol.String()),
		slog.String("value", ir.Hex(res)),
		slog.Int("bits", int(res.Bits)),
	)

	fmt.Fprintln(r.dump, dumpBegin)
	r.writeDump(res)
	r.render(res, now)
	fmt.Fprintln(r.dump, dumpEnd)

	uptime := now.Sub(r.boot)
	r.last = r.record(res, uptime)
	r.hasLast = true

	if r.store != nil && r.settings.Has(config.FlagLogCodes) {
		code := r.last
		if slot, err := r.store.AppendCode(&code); err != nil {
			r.log.Warn("store:append-failed", slog.String("err", err.Error()))
		} else {
			r.log.Info("store:appended", slog.Int("slot", int(slot)))
		}
	}

	if r.sink != nil && r.settings.Has(config.FlagPublish) {
		if !r.sink.Publish(res, uptime) {
			r.log.Warn("publish:dropped")
		}
	}
}

func (r *Recorder) writeDump(res *ir.Result) {
	if res.Overflow {
		r.log.Warn("ir:overflow", slog.Int("bufferSize", int(r.settings.CaptureBufferSize)))
		fmt.Fprintf(r.dump, "WARNING: IR code is too big for buffer (>= %d). "+
			"This result shouldn't be trusted until this is resolved. "+
			"Increase CaptureBufferSize in the settings.\n", r.settings.CaptureBufferSize)
	}

	if tol := r.settings.TolerancePct; tol != 0 && tol != ir.DefaultTolerance {
		fmt.Fprintf(r.dump, "Tolerance : %d%%\n", tol)
	}

	fmt.Fprintln(r.dump, "[HumanReadable]:")
	io.WriteString(r.dump, ir.HumanReadable(res))

	fmt.Fprintln(r.dump, "[SourceCode]:")
	fmt.Fprintln(r.dump, ir.SourceCode(res))

	if res.Address != 0 {
		fmt.Fprintf(r.dump, "Address: %s\n", display.FormatPair(res.Address))
	}
	if res.Command != 0 {
		fmt.Fprintf(r.dump, "Command: %s\n", display.FormatPair(res.Command))
	}
	if res.Value != 0 {
		fmt.Fprintf(r.dump, "Value  : 0x%016X\n", res.Value)
	}
}

// render draws res, starting a fresh screen when the old content is stale.
func (r *Recorder) render(res *ir.Result, now time.Time) {
	if r.stale(now) {
		r.disp.FillScreen(display.Black)
		r.disp.SetCursor(0, 0)
	}

	r.disp.SetTextSize(display.TextSizeSmall)
	r.disp.SetTextColor(display.White)
	for _, line := range r.formatter.Lines(res) {
		r.disp.Print(line + "\n")
	}

	if err := r.disp.Display(); err != nil {
		r.log.Error("display:flush-failed", slog.String("err", err.Error()))
	}
	r.state.LastUpdate = r.now()
}

// idle marks the bottom-right corner: the next code clears the screen.
func (r *Recorder) idle() {
	w, h := r.disp.Size()
	r.disp.FillRect(w-indicatorSize, h-indicatorSize, indicatorSize, indicatorSize, display.White)
	if err := r.disp.Display(); err != nil {
		r.log.Error("display:flush-failed", slog.String("err", err.Error()))
	}
}

func (r *Recorder) record(res *ir.Result, uptime time.Duration) config.CodeRecord {
	code := config.CodeRecord{
		Version:  config.CurrentVersion,
		Protocol: uint8(res.Protocol),
		Bits:     res.Bits,
		RawLen:   uint16(len(res.Raw)),
		Value:    res.Value,
		Address:  res.Address,
		Command:  res.Command,
		Uptime:   uint32(uptime / time.Second),
	}
	if res.Repeat {
		code.Flags |= config.CodeFlagRepeat
	}
	if res.Overflow {
		code.Flags |= config.CodeFlagOverflow
	}
	return code
}
