package ledger

import (
	"fmt"
	"os"
	"sync"
)

// Sink is a write-only remote compliance destination. Send may block and may
// fail; the forwarder isolates the append path from both.
type Sink interface {
	Send(rec AuditRecord) error
}

// DefaultQueueSize bounds the forwarder queue when the caller passes 0.
const DefaultQueueSize = 256

// Forwarder delivers records to a Sink from a background goroutine.
// Enqueue never blocks: when the queue is full the record is dropped with a
// warning, and the local ledger remains authoritative.
type Forwarder struct {
	sink  Sink
	queue chan AuditRecord
	done  chan struct{}

	// mu orders Enqueue against Close so a late append can never send on the
	// closed queue; it degrades to a dropped forward instead.
	mu     sync.Mutex
	closed bool
}

// NewForwarder creates a Forwarder with a bounded queue.
func NewForwarder(sink Sink, queueSize int) *Forwarder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Forwarder{
		sink:  sink,
		queue: make(chan AuditRecord, queueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (f *Forwarder) Start() {
	go f.run()
}

func (f *Forwarder) run() {
	defer close(f.done)
	for rec := range f.queue {
		if err := f.sink.Send(rec); err != nil {
			fmt.Fprintf(os.Stderr, "ledger: forward record %d: %v\n", rec.Seq, err)
		}
	}
}

// Enqueue hands a record to the forwarder without blocking. After Close the
// record is dropped with a warning.
func (f *Forwarder) Enqueue(rec AuditRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		fmt.Fprintf(os.Stderr, "ledger: forwarder closed, dropping record %d\n", rec.Seq)
		return
	}
	select {
	case f.queue <- rec:
	default:
		fmt.Fprintf(os.Stderr, "ledger: forward queue full, dropping record %d\n", rec.Seq)
	}
}

// Close stops accepting records and waits for queued deliveries to finish.
// Safe to call more than once.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()
	<-f.done
}
