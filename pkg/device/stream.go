package device

import "sync"

// Event is the completion fence for one queued operation. Wait blocks
// until the device has actually retired the operation, which is what a
// completion-synchronized measurement must observe — the host-side
// enqueue returns long before the work is done.
type Event struct {
	done chan struct{}
	err  error
}

// Wait blocks until the operation completes and returns its result.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Done reports completion without blocking.
func (e *Event) Done() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func failedEvent(err error) *Event {
	ev := &Event{done: make(chan struct{}), err: err}
	close(ev.done)
	return ev
}

type streamOp struct {
	name string
	run  func() error
	ev   *Event
}

// Stream is an ordered queue of device operations. Operations issued on
// the same stream retire strictly in issue order, which is what enforces
// transfer-in → kernel → transfer-out within one image without any
// host-side polling. Separate streams run independently, so per-image
// streams may interleave across images.
type Stream struct {
	dev *Device
	ops chan streamOp
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewStream creates an independent ordered operation queue on the device.
// Callers other than the device itself must Close the stream when done.
func (d *Device) NewStream() *Stream {
	s := &Stream{dev: d, ops: make(chan streamOp, 64)}
	s.wg.Add(1)
	go s.drain()
	return s
}

func (s *Stream) drain() {
	defer s.wg.Done()
	for op := range s.ops {
		op.ev.err = op.run()
		close(op.ev.done)
	}
}

// enqueue issues an operation and returns its completion event.
func (s *Stream) enqueue(name string, run func() error) *Event {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return failedEvent(&TransferError{Dir: HostToDevice, Reason: "stream closed"})
	}
	ev := &Event{done: make(chan struct{})}
	s.ops <- streamOp{name: name, run: run, ev: ev}
	s.mu.Unlock()
	return ev
}

// Synchronize blocks until every previously issued operation has retired.
func (s *Stream) Synchronize() error {
	return s.enqueue("synchronize", func() error { return nil }).Wait()
}

// Close drains pending operations and stops the stream goroutine.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()
	s.wg.Wait()
}
