package control

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultBuffer is the signal channel capacity. Producers block once the
// channel is saturated; the drain empties it every interactive tick.
const DefaultBuffer = 1024

// Fallback participant and chat labels for a ConnectTo signal that omits
// them.
const (
	FallbackUsername = "NONAME"
	FallbackChatID   = "42"
)

// ErrClosed reports that every producer dropped its end of the signal
// channel. The interactive loop treats this as fatal.
var ErrClosed = errors.New("control: signal channel closed")

// View is the interactive surface the mediator dispatches into. It is only
// ever called from the drain, so implementations need no locking.
type View interface {
	// AppendMessage adds one transcript line.
	AppendMessage(from, text string)

	// PresentInfo shows a dismissible notice.
	PresentInfo(text string)

	// TakeInput returns the pending input buffer and clears it.
	TakeInput() string

	// SetConnected reports that transport loops are live for username@chatID.
	SetConnected(username, chatID string)

	// Stop terminates the interactive loop.
	Stop()
}

// Spawn starts the transport loops for one chat and returns the publish
// function used for outgoing posts. The publish call may block until the
// outbound channel has space.
type Spawn func(username, chatID string) (post func(text string), err error)

// Mediator owns the bounded signal channel shared by all producers and
// dispatches drained signals into the view. Drain runs on the interactive
// loop only; Send may be called from any goroutine.
type Mediator struct {
	signals chan Signal
	view    View
	spawn   Spawn
	post    func(string)
	log     *zap.Logger
}

// NewMediator creates a mediator with the given channel capacity.
// A non-positive buffer falls back to DefaultBuffer.
func NewMediator(view View, spawn Spawn, buffer int, log *zap.Logger) *Mediator {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mediator{
		signals: make(chan Signal, buffer),
		view:    view,
		spawn:   spawn,
		log:     log,
	}
}

// Send queues a signal, blocking while the channel is full. It returns the
// context error if ctx ends first.
func (m *Mediator) Send(ctx context.Context, s Signal) error {
	select {
	case m.signals <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the producer side dropped. Drain reports ErrClosed once the
// remaining signals are consumed.
func (m *Mediator) Close() {
	close(m.signals)
}

// Pending returns the number of queued signals.
func (m *Mediator) Pending() int {
	return len(m.signals)
}

// Connected reports whether transport loops are live.
func (m *Mediator) Connected() bool {
	return m.post != nil
}

// Drain removes and dispatches every queued signal in arrival order, then
// returns without blocking. It returns ErrClosed when all producers are
// gone.
func (m *Mediator) Drain() error {
	for {
		select {
		case s, ok := <-m.signals:
			if !ok {
				return ErrClosed
			}
			m.dispatch(s)
		default:
			return nil
		}
	}
}

func (m *Mediator) dispatch(s Signal) {
	switch s := s.(type) {
	case Incoming:
		m.view.AppendMessage(s.From, s.Text)
	case Info:
		m.view.PresentInfo(s.Text)
	case ConnectTo:
		m.connectTo(s)
	case Outgoing:
		if m.post != nil {
			m.post(s.Text)
		} else {
			// Not connected yet: the post has nowhere to go.
			m.log.Debug("dropping outgoing message while disconnected")
		}
	case Submit:
		m.submit()
	case Quit:
		m.view.Stop()
	default:
		m.log.Warn("unknown signal", zap.String("type", fmt.Sprintf("%T", s)))
	}
}

func (m *Mediator) connectTo(s ConnectTo) {
	if m.post != nil {
		m.enqueue(Info{Text: "RUNTIME ERROR:\ntrying to connect when already connected."})
		return
	}
	username := s.Username
	if username == "" {
		username = FallbackUsername
	}
	chatID := s.ChatID
	if chatID == "" {
		chatID = FallbackChatID
	}
	post, err := m.spawn(username, chatID)
	if err != nil {
		m.enqueue(Info{Text: "CONNECT ERROR:\n" + err.Error()})
		return
	}
	m.post = post
	m.view.SetConnected(username, chatID)
}

func (m *Mediator) submit() {
	text := m.view.TakeInput()
	if strings.TrimSpace(text) == "" {
		m.enqueue(Info{Text: "Cannot send an empty message."})
		return
	}
	m.enqueue(Outgoing{Text: text})
}

// enqueue is used by the dispatch itself; the drain at the next tick picks
// the signal up in order behind anything already queued.
func (m *Mediator) enqueue(s Signal) {
	if err := m.Send(context.Background(), s); err != nil {
		m.log.Warn("enqueue failed", zap.Error(err))
	}
}
