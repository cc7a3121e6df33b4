// Package connector turns a chat's append-only stream into two directional
// flows: an input loop that replays history then tails new entries into the
// signal channel, and an output loop that serializes posts back to the
// stream. The loops are independent so a blocked publish never delays
// delivery.
package connector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/streamtalk/streamtalk-go/internal/control"
	"github.com/streamtalk/streamtalk-go/internal/stream"
)

// Event is an outbound intent consumed by the output loop.
type Event interface {
	event()
}

// Post publishes text to the chat attributed to the local participant.
type Post struct {
	Text string
}

func (Post) event() {}

// Sink receives signals emitted by the input loop. *control.Mediator
// satisfies it.
type Sink interface {
	Send(ctx context.Context, s control.Signal) error
}

// Options tune the input loop's blocking read. They affect responsiveness,
// not correctness.
type Options struct {
	// ReadCount bounds how many entries one blocking read returns.
	ReadCount int64

	// BlockWait bounds how long one blocking read waits before the loop
	// re-checks for cancellation.
	BlockWait time.Duration

	// OutboundBuffer is the capacity of the output loop's event channel.
	OutboundBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadCount <= 0 {
		o.ReadCount = 10
	}
	if o.BlockWait <= 0 {
		o.BlockWait = 2 * time.Second
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = 1024
	}
	return o
}

// Connector owns the two transport loops for one chat.
type Connector struct {
	username string
	chatID   string
	reader   stream.Reader
	writer   stream.Writer
	sink     Sink
	opts     Options
	log      *zap.Logger

	events chan Event
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Spawn starts the input and output loops for username@chatID. The caller
// ends them with Close.
func Spawn(ctx context.Context, r stream.Reader, w stream.Writer, username, chatID string, sink Sink, opts Options, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	c := &Connector{
		username: username,
		chatID:   chatID,
		reader:   r,
		writer:   w,
		sink:     sink,
		opts:     opts,
		log:      log.With(zap.String("chat_id", chatID)),
		events:   make(chan Event, opts.OutboundBuffer),
		cancel:   cancel,
		group:    g,
	}
	g.Go(func() error { return c.inputLoop(ctx) })
	g.Go(func() error { return c.outputLoop(ctx) })
	return c
}

// Post queues an outbound publish, blocking while the outbound channel is
// full.
func (c *Connector) Post(text string) {
	c.events <- Post{Text: text}
}

// Close shuts both loops down, waiting at most grace for them to finish.
// Loops still running after the grace period are abandoned; in-flight
// publishes may be lost.
func (c *Connector) Close(grace time.Duration) {
	close(c.events)
	c.cancel()

	done := make(chan struct{})
	go func() {
		_ = c.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		c.log.Warn("transport loops abandoned after shutdown grace", zap.Duration("grace", grace))
	}
}

// inputLoop replays the chat history once, then tails new entries until the
// context ends. Transport errors are surfaced as Info signals and the loop
// keeps going.
func (c *Connector) inputLoop(ctx context.Context) error {
	c.log.Debug("input loop starting")
	c.catchUp(ctx)

	lastID := stream.StartNew
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entries, err := c.reader.ReadAfter(ctx, c.chatID, lastID, c.opts.ReadCount, c.opts.BlockWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.emit(ctx, control.Info{Text: fmt.Sprintf("TRANSPORT ERROR: %v", err)})
			continue
		}
		for _, e := range entries {
			c.emitEntry(ctx, e)
			lastID = e.ID
		}
	}
}

// catchUp emits the full prior transcript in log order. It never advances
// the tail cursor: tailing starts from "new entries only" regardless of how
// much history was replayed.
func (c *Connector) catchUp(ctx context.Context) {
	entries, err := c.reader.RangeAll(ctx, c.chatID)
	if err != nil {
		c.emit(ctx, control.Info{Text: fmt.Sprintf("TRANSPORT ERROR: %v", err)})
		return
	}
	for _, e := range entries {
		c.emitEntry(ctx, e)
	}
}

func (c *Connector) emitEntry(ctx context.Context, e stream.Entry) {
	ts := stream.FormatEntryTime(e.ID)
	for from, text := range e.Values {
		c.emit(ctx, control.Incoming{From: from, Text: ts + ". " + text})
	}
}

func (c *Connector) emit(ctx context.Context, s control.Signal) {
	if err := c.sink.Send(ctx, s); err != nil {
		c.log.Debug("signal dropped", zap.Error(err))
	}
}

// outputLoop serializes posts to the stream. It stops when the event
// channel closes or the context ends.
func (c *Connector) outputLoop(ctx context.Context) error {
	c.log.Debug("output loop starting")
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case Post:
				if _, err := c.writer.Append(ctx, c.chatID, map[string]string{c.username: ev.Text}); err != nil {
					c.log.Warn("publish failed", zap.Error(err))
					c.emit(ctx, control.Info{Text: fmt.Sprintf("TRANSPORT ERROR: %v", err)})
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
