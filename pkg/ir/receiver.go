package ir

import (
	"math"
	"time"
)

// Receiver collects mark/space durations into a fixed capture buffer and
// decodes completed messages.
//
// Mark and Space are called from the pin interrupt on the device; Decode is
// called from the main loop. The caller is responsible for masking the
// interrupt around Decode.
type Receiver struct {
	cfg Config

	buf      []uint16
	n        int
	overflow bool
	ready    bool
	lastEdge time.Time

	// out is handed to Result.Raw so decoding does not allocate per message.
	out []uint16

	now func() time.Time
}

// NewReceiver allocates the capture buffer. Zero fields in cfg take their
// defaults.
func NewReceiver(cfg Config) *Receiver {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Tolerance == 0 || cfg.Tolerance >= 100 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MinUnknownSize <= 0 {
		cfg.MinUnknownSize = def.MinUnknownSize
	}
	return &Receiver{
		cfg: cfg,
		buf: make([]uint16, cfg.BufferSize),
		out: make([]uint16, cfg.BufferSize),
		now: time.Now,
	}
}

// Config returns the settings the receiver was built with.
func (r *Receiver) Config() Config {
	return r.cfg
}

// Mark records the duration the IR carrier was present.
func (r *Receiver) Mark(d time.Duration) {
	if r.ready {
		return
	}
	r.push(d)
	r.lastEdge = r.now()
}

// Space records the duration the IR carrier was absent.
// A space on an empty buffer is the gap before a message and is dropped.
// A space longer than the timeout means the captured message is complete;
// edges are then ignored until Decode collects it.
func (r *Receiver) Space(d time.Duration) {
	if r.ready {
		return
	}
	r.lastEdge = r.now()
	if r.n == 0 {
		return
	}
	if d > r.cfg.Timeout {
		r.ready = true
		return
	}
	r.push(d)
}

func (r *Receiver) push(d time.Duration) {
	if r.n >= len(r.buf) {
		r.overflow = true
		return
	}
	us := d.Microseconds()
	if us > math.MaxUint16 {
		us = math.MaxUint16
	}
	if us < 0 {
		us = 0
	}
	r.buf[r.n] = uint16(us)
	r.n++
}

// Decode fills res with the captured message once it is complete.
// It returns false when nothing is ready or when the capture was too short to
// be anything but noise.
func (r *Receiver) Decode(res *Result) bool {
	if r.n == 0 {
		return false
	}
	if !r.ready && r.now().Sub(r.lastEdge) <= r.cfg.Timeout {
		return false
	}

	n := copy(r.out, r.buf[:r.n])
	overflow := r.overflow
	r.n = 0
	r.overflow = false
	r.ready = false

	*res = Result{
		Raw:      r.out[:n],
		Overflow: overflow,
	}
	return r.decode(res)
}

func (r *Receiver) decode(res *Result) bool {
	tol := r.cfg.Tolerance
	if decodeNEC(res, tol) {
		return true
	}
	if decodeSamsung(res, tol) {
		return true
	}
	if len(res.Raw) < r.cfg.MinUnknownSize {
		return false
	}
	decodeHash(res)
	return true
}
