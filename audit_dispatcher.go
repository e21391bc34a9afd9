package authcore

import (
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher decouples engine operations from the sink: Dispatch is a
// non-blocking buffered send and a single goroutine drains to the sink.
// Overflow increments a counter instead of blocking the hot path.
type auditDispatcher struct {
	sink    AuditSink
	queue   chan AuditEvent
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

func newAuditDispatcher(sink AuditSink, bufferSize int) *auditDispatcher {
	if sink == nil {
		sink = NoopAuditSink{}
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}

	d := &auditDispatcher{
		sink:  sink,
		queue: make(chan AuditEvent, bufferSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.sink.Emit(event)
	}
}

// Dispatch enqueues an event. Never blocks.
func (d *auditDispatcher) Dispatch(event AuditEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many events overflowed the queue since start.
func (d *auditDispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close drains the queue and stops the dispatcher goroutine.
func (d *auditDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
		<-d.done
	})
}
