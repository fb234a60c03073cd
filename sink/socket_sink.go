package sink

import (
	"context"
	"sync"

	"tandem/errors"
)

// Writer is the outbound half of a connection: a websocket, or anything framed like one.
type Writer interface {
	Write(payload []byte) error
	Close() error
}

// SocketSink decouples fan-out from the network. Send only queues, Run drains the
// queue into the connection in order, so a subscriber receives payloads in send order.
type SocketSink struct {
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSocketSink(bufferSize int) *SocketSink {
	return &SocketSink{
		queue: make(chan []byte, bufferSize),
		done:  make(chan struct{}),
	}
}

// Send never blocks. A full buffer means the connection fell behind.
func (s *SocketSink) Send(payload []byte) error {
	select {
	case <-s.done:
		return errors.ErrSubscriberGone
	default:
	}
	select {
	case s.queue <- payload:
		return nil
	case <-s.done:
		return errors.ErrSubscriberGone
	default:
		return errors.ErrSlowSubscriber
	}
}

// Close is idempotent. Queued payloads are dropped and Run returns.
func (s *SocketSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *SocketSink) Done() <-chan struct{} {
	return s.done
}

// Run writes queued payloads until the sink is closed, the context ends or a write fails.
// The writer is closed on the way out.
func (s *SocketSink) Run(ctx context.Context, w Writer) error {
	defer func() {
		s.Close()
		_ = w.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case payload := <-s.queue:
			if err := w.Write(payload); err != nil {
				return err
			}
		}
	}
}
