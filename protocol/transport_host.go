package protocol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	ErrTimeout  = errors.New("protocol: timeout")
	ErrClosed   = errors.New("protocol: transport closed")
	ErrSequence = errors.New("protocol: unexpected acknowledgement")
)

// DefaultTimeout bounds the wait for an acknowledgement or response.
const DefaultTimeout = 2 * time.Second

// maxResends bounds the resends of a frame the device dropped as out of
// sequence.
const maxResends = 3

// HostTransport is the client end of a link. Commands are sent one at a
// time; each waits for its acknowledgement before the next is written.
type HostTransport struct {
	port io.ReadWriteCloser
	log  *slog.Logger

	mu  sync.Mutex
	seq byte
	// synced is cleared when an acknowledgement is lost; the device may or
	// may not have run the frame.
	synced bool

	scan  *Scanner
	acks  chan Frame
	resps chan Frame

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Timeout is used by Send and Call.
	Timeout time.Duration
}

// NewHostTransport starts reading frames from port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:    port,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		seq:     SeqDest,
		synced:  true,
		scan:    NewScanner(),
		acks:    make(chan Frame, 8),
		resps:   make(chan Frame, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		Timeout: DefaultTimeout,
	}
	go t.readLoop()
	return t
}

// SetLogger sets the logger for link errors.
func (t *HostTransport) SetLogger(l *slog.Logger) { t.log = l }

// Send transmits m and waits for its acknowledgement.
func (t *HostTransport) Send(m *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.send(m.Payload(), t.Timeout)
}

// Call transmits m and returns the first response frame after it.
func (t *HostTransport) Call(m *Message) (Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.resps) > 0 {
		<-t.resps
	}
	if err := t.send(m.Payload(), t.Timeout); err != nil {
		return Frame{}, err
	}
	return t.ReceiveResponse(t.Timeout)
}

func (t *HostTransport) send(payload []byte, timeout time.Duration) error {
	if !t.synced {
		if err := t.sync(timeout); err != nil {
			return err
		}
	}
	for resends := 0; ; resends++ {
		sent := t.seq
		ack, err := t.exchange(sent, payload, timeout)
		if err != nil {
			t.synced = false
			return err
		}
		t.seq = ack
		if ack == NextSeq(sent) {
			return nil
		}
		// The device expects ack and dropped the frame.
		if resends == maxResends {
			t.synced = false
			return fmt.Errorf("ack 0x%02x after %d resends: %w", ack, resends, ErrSequence)
		}
		t.log.Debug("resending frame",
			slog.Uint64("seq", uint64(sent)),
			slog.Uint64("want", uint64(ack)))
	}
}

// sync learns the sequence the device expects after a lost acknowledgement
// by sending an empty frame, which dispatches nothing whether or not the
// device accepts it.
func (t *HostTransport) sync(timeout time.Duration) error {
	ack, err := t.exchange(t.seq, nil, timeout)
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}
	t.log.Debug("resynced", slog.Uint64("seq", uint64(ack)))
	// Responses queued by now answer the frame whose ack was lost.
	for len(t.resps) > 0 {
		<-t.resps
	}
	t.seq = ack
	t.synced = true
	return nil
}

// exchange writes one frame and returns the sequence the device acknowledged
// with. An acknowledgement equal to seq is a late duplicate: the device
// answers a frame either with the sequence after it or, when dropping it,
// with a different expected one.
func (t *HostTransport) exchange(seq byte, payload []byte, timeout time.Duration) (byte, error) {
	f, err := EncodeFrame(seq, payload)
	if err != nil {
		return 0, err
	}
	for len(t.acks) > 0 {
		<-t.acks
	}
	if _, err := t.port.Write(f); err != nil {
		return 0, fmt.Errorf("write frame: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-t.acks:
			if ack.Seq == seq {
				t.log.Debug("duplicate ack", slog.Uint64("seq", uint64(ack.Seq)))
				continue
			}
			return ack.Seq, nil
		case <-timer.C:
			return 0, fmt.Errorf("ack after %v: %w", timeout, ErrTimeout)
		case <-t.stop:
			return 0, ErrClosed
		}
	}
}

// ReceiveResponse waits for the next response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-t.resps:
		return f, nil
	case <-timer.C:
		return Frame{}, fmt.Errorf("response after %v: %w", timeout, ErrTimeout)
	case <-t.stop:
		return Frame{}, ErrClosed
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		select {
		case <-t.stop:
			return
		default:
		}
		if n > 0 {
			t.scan.Write(buf[:n])
			t.drain()
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			// Serial ports report a read timeout as EOF.
			if n == 0 {
				time.Sleep(time.Millisecond)
			}
		case errors.Is(err, os.ErrClosed), errors.Is(err, io.ErrClosedPipe):
			return
		default:
			t.log.Warn("read failed", slog.Any("err", err))
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) drain() {
	for {
		f, ok := t.scan.Next()
		if !ok {
			return
		}
		if f.IsAck() {
			push(t.acks, f)
			continue
		}
		push(t.resps, f)
	}
}

// push queues f, dropping the oldest frame when ch is full.
func push(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// Reset restarts the sequence and forgets pending frames.
func (t *HostTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq = SeqDest
	t.synced = true
	for len(t.acks) > 0 {
		<-t.acks
	}
	for len(t.resps) > 0 {
		<-t.resps
	}
}

// Sequence returns the sequence byte of the next command.
func (t *HostTransport) Sequence() byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
