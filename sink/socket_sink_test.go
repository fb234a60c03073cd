package sink

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tandem/errors"
)

type bufferWriter struct {
	mu      sync.Mutex
	written []string
	failOn  string
	closed  bool
}

func (w *bufferWriter) Write(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if string(payload) == w.failOn {
		return stderrors.New("broken pipe")
	}
	w.written = append(w.written, string(payload))
	return nil
}

func (w *bufferWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *bufferWriter) snapshot() ([]string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...), w.closed
}

func TestSocketSink_Writes_In_Order(t *testing.T) {
	req := require.New(t)
	sink := NewSocketSink(8)
	writer := &bufferWriter{}

	for _, p := range []string{"1", "2", "3"} {
		req.NoError(sink.Send([]byte(p)))
	}
	done := make(chan error, 1)
	go func() { done <- sink.Run(context.Background(), writer) }()

	req.Eventually(func() bool {
		written, _ := writer.snapshot()
		return len(written) == 3
	}, time.Second, 5*time.Millisecond)

	sink.Close()
	req.NoError(<-done)
	written, closed := writer.snapshot()
	req.Equal([]string{"1", "2", "3"}, written)
	req.True(closed)
}

func TestSocketSink_Full_Buffer_Is_Slow(t *testing.T) {
	req := require.New(t)
	sink := NewSocketSink(1)

	req.NoError(sink.Send([]byte("1")))
	req.ErrorIs(sink.Send([]byte("2")), errors.ErrSlowSubscriber)
}

func TestSocketSink_Closed_Is_Gone(t *testing.T) {
	req := require.New(t)
	sink := NewSocketSink(1)

	sink.Close()
	sink.Close()

	req.ErrorIs(sink.Send([]byte("1")), errors.ErrSubscriberGone)
	select {
	case <-sink.Done():
	default:
		req.Fail("done should be closed")
	}
}

func TestSocketSink_Write_Failure_Closes_Sink(t *testing.T) {
	req := require.New(t)
	sink := NewSocketSink(4)
	writer := &bufferWriter{failOn: "2"}
	req.NoError(sink.Send([]byte("1")))
	req.NoError(sink.Send([]byte("2")))

	err := sink.Run(context.Background(), writer)

	req.Error(err)
	req.ErrorIs(sink.Send([]byte("3")), errors.ErrSubscriberGone)
	written, closed := writer.snapshot()
	req.Equal([]string{"1"}, written)
	req.True(closed)
}
