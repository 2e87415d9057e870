//go:build tinygo

package ir

import (
	"machine"
	"runtime/interrupt"
	"time"
)

// PinReceiver feeds a Receiver from the output pin of a 38kHz demodulating
// IR receiver. The receiver idles high and pulls the line low while the
// carrier is present.
type PinReceiver struct {
	*Receiver
	pin       machine.Pin
	lastPulse time.Time
}

// NewPinReceiver configures pin as an input and allocates the capture buffer.
// Call Start to begin capturing.
func NewPinReceiver(pin machine.Pin, cfg Config) *PinReceiver {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &PinReceiver{
		Receiver: NewReceiver(cfg),
		pin:      pin,
	}
}

// Start sets the edge interrupt handler.
func (p *PinReceiver) Start() error {
	p.lastPulse = time.Now()
	return p.pin.SetInterrupt(machine.PinFalling|machine.PinRising, p.interruptHandler)
}

// Stop disables the interrupt handler.
func (p *PinReceiver) Stop() error {
	return p.pin.SetInterrupt(machine.PinFalling|machine.PinRising, nil)
}

func (p *PinReceiver) interruptHandler(pin machine.Pin) {
	now := time.Now()
	d := now.Sub(p.lastPulse)
	p.lastPulse = now
	if pin.Get() {
		// line released: the carrier just ended
		p.Mark(d)
	} else {
		p.Space(d)
	}
}

// Decode masks interrupts while the capture is copied out and classified.
func (p *PinReceiver) Decode(res *Result) bool {
	mask := interrupt.Disable()
	ok := p.Receiver.Decode(res)
	interrupt.Restore(mask)
	return ok
}
