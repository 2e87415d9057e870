// Package publish forwards decoded IR codes to an MQTT broker.
//
// The recorder hands results to a Queue, which never blocks the main loop.
// On the Pico W build a Client drains the queue from its own goroutine and
// publishes each Event as JSON.
package publish

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/tuffrabit/tinygo-irrecord-rp2040/pkg/ir"
)

// Topic is the MQTT topic events are published to.
const Topic = "irrecord/codes"

// Event is the published form of a decoded code.
type Event struct {
	Protocol    string `json:"protocol"`
	Value       string `json:"value"`
	Address     uint32 `json:"address"`
	Command     uint32 `json:"command"`
	Bits        uint16 `json:"bits"`
	Overflow    bool   `json:"overflow,omitempty"`
	SinceBootMs int64  `json:"sinceBootMs"`
}

// NewEvent builds the event for res, captured uptime after boot.
func NewEvent(res *ir.Result, uptime time.Duration) Event {
	return Event{
		Protocol:    ir.TypeToString(res.Protocol, res.Repeat),
		Value:       ir.Hex(res),
		Address:     res.Address,
		Command:     res.Command,
		Bits:        res.Bits,
		Overflow:    res.Overflow,
		SinceBootMs: uptime.Milliseconds(),
	}
}

// Payload returns the JSON encoding of e.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Queue is a bounded event buffer between the main loop and the publisher.
type Queue struct {
	events  chan Event
	dropped atomic.Uint32
}

// NewQueue creates a queue holding up to size events.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{events: make(chan Event, size)}
}

// Publish enqueues res without blocking. It returns false and counts the
// event as dropped when the queue is full.
func (q *Queue) Publish(res *ir.Result, uptime time.Duration) bool {
	select {
	case q.events <- NewEvent(res, uptime):
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Events is the receive side of the queue.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() uint32 {
	return q.dropped.Load()
}
