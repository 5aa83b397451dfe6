package protocol

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Handler processes one command. r is positioned after the command id and
// the handler must consume exactly the command's arguments.
type Handler func(id uint16, r *Reader) error

// Transport is the serving end of a link. It acknowledges every frame it
// receives, dispatches the commands of in-sequence frames and sends
// responses tagged with the next expected sequence.
type Transport struct {
	mu      sync.Mutex
	out     io.Writer
	scan    *Scanner
	handler Handler
	nextSeq byte
	onReset func()
	log     *slog.Logger
}

// NewTransport returns a Transport writing to out and dispatching to h.
func NewTransport(out io.Writer, h Handler) *Transport {
	t := &Transport{
		out:     out,
		scan:    NewScanner(),
		handler: h,
		nextSeq: SeqDest,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.scan.OnResync = func() {
		if err := t.ack(); err != nil {
			t.log.Warn("ack after resync failed", slog.Any("err", err))
		}
	}
	return t
}

// SetLogger sets the logger for dropped frames and handler errors.
func (t *Transport) SetLogger(l *slog.Logger) { t.log = l }

// SetResetCallback sets a function called when the client restarts its
// sequence.
func (t *Transport) SetResetCallback(f func()) { t.onReset = f }

// Receive consumes bytes read from the link.
func (t *Transport) Receive(data []byte) error {
	t.scan.Write(data)
	for {
		f, ok := t.scan.Next()
		if !ok {
			return nil
		}
		if f.Seq == SeqDest && t.nextSeq != SeqDest {
			t.log.Info("client reset sequence")
			t.nextSeq = SeqDest
			if t.onReset != nil {
				t.onReset()
			}
		}
		inSeq := f.Seq == t.nextSeq
		if inSeq {
			t.nextSeq = NextSeq(f.Seq)
		} else {
			t.log.Debug("out of sequence frame",
				slog.Uint64("seq", uint64(f.Seq)),
				slog.Uint64("want", uint64(t.nextSeq)))
		}
		// An out of sequence frame is answered with the expected sequence
		// and acts as a nak.
		if err := t.ack(); err != nil {
			return err
		}
		if inSeq {
			t.dispatch(f.Payload)
		}
	}
}

func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("command handler panicked", slog.Any("panic", r))
		}
	}()
	r := NewReader(payload)
	for r.Len() > 0 {
		id, err := r.Uint()
		if err != nil {
			t.log.Warn("bad command id", slog.Any("err", err))
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(id), r); err != nil {
			t.log.Warn("command failed", slog.Uint64("id", uint64(id)), slog.Any("err", err))
			return
		}
	}
}

func (t *Transport) write(seq byte, payload []byte) error {
	f, err := EncodeFrame(seq, payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(f); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (t *Transport) ack() error {
	return t.write(t.nextSeq, nil)
}

// Send transmits a response payload.
func (t *Transport) Send(m *Message) error {
	return t.write(t.nextSeq, m.Payload())
}

// Reset returns the transport to its initial sequence.
func (t *Transport) Reset() {
	t.nextSeq = SeqDest
	if t.onReset != nil {
		t.onReset()
	}
}

// Stats returns the number of frames dropped as corrupt.
func (t *Transport) Stats() (dropped int) { return t.scan.Dropped }
