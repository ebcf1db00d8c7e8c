// Package transport runs one framed connection: a read loop feeding the
// dispatcher and a single writer goroutine draining a bounded outbound queue.
package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"secure-chat/codec"
	"secure-chat/contract"
	"secure-chat/domain/chat"
	apperrors "secure-chat/errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultQueueSize    = 256
	DefaultFlushTimeout = 2 * time.Second
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Connection owns a stream and the session bound to it.
// Messages for the peer are queued by Deliver and written, in order, by one
// goroutine, so a slow peer only ever delays itself.
type Connection struct {
	log          *slog.Logger
	stream       io.ReadWriteCloser
	dispatcher   contract.IDispatcher
	session      *chat.Session
	flushTimeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan chat.Message

	closeStream sync.Once
}

func NewConnection(log *slog.Logger,
	stream io.ReadWriteCloser,
	dispatcher contract.IDispatcher,
	queueSize int,
	flushTimeout time.Duration) *Connection {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}
	c := &Connection{
		stream:       stream,
		dispatcher:   dispatcher,
		flushTimeout: flushTimeout,
		queue:        make(chan chat.Message, queueSize),
	}
	c.session = chat.NewSession(uuid.NewString(), c)
	c.log = log.With("session_id", c.session.ID())
	return c
}

func (c *Connection) Session() *chat.Session {
	return c.session
}

// Deliver queues m for the peer without blocking. It reports false when the
// queue is full, in which case m is dropped for this peer only, or when the
// connection is closing.
func (c *Connection) Deliver(m chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- m:
		return true
	default:
		c.log.Warn("Outbound queue full, dropping message", "kind", m.Kind, "capacity", cap(c.queue))
		return false
	}
}

// Serve blocks until the peer goes away, a fatal framing error occurs or ctx
// is canceled. The session is always cleaned up exactly once before Serve
// returns. A clean close or a shutdown returns nil.
func (c *Connection) Serve(ctx context.Context) error {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	// Closing the stream is what unblocks a pending read on shutdown
	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	err := c.readLoop()

	c.dispatcher.Disconnect(c.session)
	c.stopWriter()
	<-writerDone
	c.close()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Connection) readLoop() error {
	for {
		frame, err := codec.ReadFrame(c.stream)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			c.log.Debug("Peer closed the connection")
			return nil
		case errors.Is(err, apperrors.ErrFrameTooLarge):
			c.log.Warn("Oversize frame, closing connection", "error", err)
			c.Deliver(chat.NewError(chat.ReasonInvalidLength))
			return err
		default:
			c.log.Debug("Read failed", "error", err)
			return err
		}

		msg, err := codec.Decode(frame)
		if err != nil {
			reason := chat.ReasonMalformedMessage
			if errors.Is(err, apperrors.ErrUnknownKind) {
				reason = chat.ReasonUnknownType
			}
			c.log.Debug("Rejected frame", "reason", reason, "error", err)
			c.session.Send(chat.NewError(reason))
			continue
		}
		c.dispatcher.Dispatch(c.session, msg)
	}
}

// writeLoop runs until the queue is closed. After a write failure the rest of
// the queue is discarded.
func (c *Connection) writeLoop() {
	broken := false
	for m := range c.queue {
		if broken {
			continue
		}
		frame, err := codec.Encode(m)
		if err != nil {
			c.log.Error("Failed to encode outbound message", "kind", m.Kind, "error", err)
			continue
		}
		if _, err := c.stream.Write(frame); err != nil {
			c.log.Debug("Write failed", "error", err)
			broken = true
			// Also wakes up the reader
			c.close()
		}
	}
}

// stopWriter refuses new messages and gives the writer flushTimeout to write
// what is already queued.
func (c *Connection) stopWriter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if d, ok := c.stream.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(c.flushTimeout))
	}
	close(c.queue)
}

func (c *Connection) close() {
	c.closeStream.Do(func() {
		if err := c.stream.Close(); err != nil {
			c.log.Debug("Error while closing stream", "error", err)
		}
	})
}
