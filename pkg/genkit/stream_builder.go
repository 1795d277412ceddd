package genkit

import (
	"errors"
	"fmt"
	"sync"
)

type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusTruncated
	StatusBlocked
	StatusError
)

type streamEvent struct {
	chunk   *MessageChunk
	status  Status
	usage   Usage
	refusal string
	err     error
}

// StreamBuilder is the producer side of a Stream. A backend pushes
// chunks with Add and ends the stream with exactly one terminal call
// (Done, Truncated, Blocked, Unexpected or Abort). Producer and
// consumer run on separate goroutines; the channel between them
// provides the backpressure.
type StreamBuilder struct {
	events chan *streamEvent
	closed chan struct{}
	once   sync.Once
	err    error
}

// NewStreamBuilder creates a builder whose stream buffers up to size
// chunks between producer and consumer.
func NewStreamBuilder(size int) *StreamBuilder {
	if size <= 0 {
		size = 32
	}
	return &StreamBuilder{
		events: make(chan *streamEvent, size),
		closed: make(chan struct{}),
	}
}

var errStreamClosed = errors.New("genkit: stream closed")

func (sb *StreamBuilder) send(evt *streamEvent) error {
	select {
	case <-sb.closed:
		return sb.err
	case sb.events <- evt:
		return nil
	}
}

// Add pushes chunks to the stream. It fails once the stream is closed.
func (sb *StreamBuilder) Add(chunks ...*MessageChunk) error {
	for _, c := range chunks {
		if err := sb.send(&streamEvent{chunk: c}); err != nil {
			return err
		}
	}
	return nil
}

// Done ends the stream normally.
func (sb *StreamBuilder) Done(stats Usage) error {
	return sb.send(&streamEvent{status: StatusDone, usage: stats})
}

// Truncated ends the stream after the model hit its token limit.
func (sb *StreamBuilder) Truncated(stats Usage) error {
	return sb.send(&streamEvent{status: StatusTruncated, usage: stats})
}

// Blocked ends the stream after the model refused to continue.
func (sb *StreamBuilder) Blocked(stats Usage, refusal string) error {
	return sb.send(&streamEvent{status: StatusBlocked, usage: stats, refusal: refusal})
}

// Unexpected ends the stream on a backend error.
func (sb *StreamBuilder) Unexpected(stats Usage, err error) error {
	return sb.send(&streamEvent{status: StatusError, usage: stats, err: err})
}

// Abort tears the stream down immediately. Chunks still queued may be
// delivered before the consumer observes err.
func (sb *StreamBuilder) Abort(err error) error {
	return sb.close(err)
}

func (sb *StreamBuilder) close(err error) error {
	sb.once.Do(func() {
		if err == nil {
			err = errStreamClosed
		}
		sb.err = err
		close(sb.closed)
	})
	return nil
}

// Stream returns the consumer side.
func (sb *StreamBuilder) Stream() Stream {
	return (*streamImpl)(sb)
}

type streamImpl StreamBuilder

func (s *streamImpl) Next() (*MessageChunk, error) {
	// Drain queued events before honoring a close.
	select {
	case evt := <-s.events:
		return s.resolve(evt)
	default:
	}
	select {
	case evt := <-s.events:
		return s.resolve(evt)
	case <-s.closed:
		return nil, s.err
	}
}

func (s *streamImpl) resolve(evt *streamEvent) (*MessageChunk, error) {
	var err error
	switch evt.status {
	case StatusOK:
		return evt.chunk, nil
	case StatusDone:
		err = Done(evt.usage)
	case StatusTruncated:
		err = Truncated(evt.usage)
	case StatusBlocked:
		err = Blocked(evt.usage, evt.refusal)
	case StatusError:
		err = Error(evt.usage, evt.err)
	default:
		err = fmt.Errorf("genkit: unexpected stream status: %v", evt.status)
	}
	(*StreamBuilder)(s).close(err)
	return nil, err
}

func (s *streamImpl) Close() error {
	return (*StreamBuilder)(s).close(nil)
}

func (s *streamImpl) CloseWithError(err error) error {
	return (*StreamBuilder)(s).close(err)
}
