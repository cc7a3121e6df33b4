package control

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	lines     []string
	notices   []string
	input     string
	connected []string
	stopped   bool
}

func (v *fakeView) AppendMessage(from, text string) {
	v.lines = append(v.lines, from+": "+text)
}

func (v *fakeView) PresentInfo(text string) {
	v.notices = append(v.notices, text)
}

func (v *fakeView) TakeInput() string {
	t := v.input
	v.input = ""
	return t
}

func (v *fakeView) SetConnected(username, chatID string) {
	v.connected = append(v.connected, username+"@"+chatID)
}

func (v *fakeView) Stop() {
	v.stopped = true
}

type fakeSpawner struct {
	calls int
	posts []string
	err   error
}

func (f *fakeSpawner) spawn(username, chatID string) (func(string), error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return func(text string) { f.posts = append(f.posts, text) }, nil
}

func newTestMediator(t *testing.T) (*Mediator, *fakeView, *fakeSpawner) {
	t.Helper()
	view := &fakeView{}
	sp := &fakeSpawner{}
	return NewMediator(view, sp.spawn, 16, nil), view, sp
}

func TestDrain_FIFOAndComplete(t *testing.T) {
	med, view, _ := newTestMediator(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, med.Send(ctx, Incoming{From: "a", Text: fmt.Sprintf("m%d", i)}))
	}

	require.NoError(t, med.Drain())
	require.Len(t, view.lines, 10)
	for i, line := range view.lines {
		assert.Equal(t, fmt.Sprintf("a: m%d", i), line)
	}
	assert.Equal(t, 0, med.Pending())
}

func TestDrain_EmptyIsNotAnError(t *testing.T) {
	med, _, _ := newTestMediator(t)
	assert.NoError(t, med.Drain())
}

func TestDrain_Closed(t *testing.T) {
	med, view, _ := newTestMediator(t)
	require.NoError(t, med.Send(context.Background(), Incoming{From: "a", Text: "last"}))
	med.Close()

	// Queued signals are still delivered before the closure surfaces.
	err := med.Drain()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, []string{"a: last"}, view.lines)
}

func TestConnectTo_SpawnsOnce(t *testing.T) {
	med, view, sp := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, med.Send(ctx, ConnectTo{Username: "Customer", ChatID: "room1"}))
	require.NoError(t, med.Drain())

	assert.Equal(t, 1, sp.calls)
	assert.True(t, med.Connected())
	assert.Equal(t, []string{"Customer@room1"}, view.connected)
}

func TestConnectTo_WhileConnected(t *testing.T) {
	med, view, sp := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, med.Send(ctx, ConnectTo{Username: "Customer", ChatID: "room1"}))
	require.NoError(t, med.Send(ctx, ConnectTo{Username: "Other", ChatID: "room2"}))
	require.NoError(t, med.Drain())

	assert.Equal(t, 1, sp.calls, "no second connector may be spawned")
	require.Len(t, view.notices, 1)
	assert.Contains(t, view.notices[0], "already connected")
}

func TestConnectTo_Fallbacks(t *testing.T) {
	med, view, sp := newTestMediator(t)

	require.NoError(t, med.Send(context.Background(), ConnectTo{}))
	require.NoError(t, med.Drain())

	assert.Equal(t, 1, sp.calls)
	assert.Equal(t, []string{FallbackUsername + "@" + FallbackChatID}, view.connected)
}

func TestSubmit_Empty(t *testing.T) {
	med, view, sp := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, med.Send(ctx, ConnectTo{ChatID: "room1"}))
	view.input = "   "
	require.NoError(t, med.Send(ctx, Submit{}))
	require.NoError(t, med.Drain())

	assert.Empty(t, sp.posts, "empty input must not produce an outbound post")
	require.Len(t, view.notices, 1)
	assert.Contains(t, view.notices[0], "empty")
}

func TestSubmit_ForwardsExactTextAndClearsBuffer(t *testing.T) {
	med, view, sp := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, med.Send(ctx, ConnectTo{ChatID: "room1"}))
	view.input = "hello there"
	require.NoError(t, med.Send(ctx, Submit{}))
	require.NoError(t, med.Drain())

	assert.Equal(t, []string{"hello there"}, sp.posts)
	assert.Equal(t, "", view.input)
	assert.Empty(t, view.notices)
}

func TestOutgoing_DroppedWhileDisconnected(t *testing.T) {
	med, view, sp := newTestMediator(t)

	require.NoError(t, med.Send(context.Background(), Outgoing{Text: "nobody hears this"}))
	require.NoError(t, med.Drain())

	assert.Empty(t, sp.posts)
	assert.Empty(t, view.notices)
}

func TestQuit(t *testing.T) {
	med, view, _ := newTestMediator(t)

	require.NoError(t, med.Send(context.Background(), Quit{}))
	require.NoError(t, med.Drain())

	assert.True(t, view.stopped)
}

func TestSend_BlocksUntilContextEnds(t *testing.T) {
	view := &fakeView{}
	sp := &fakeSpawner{}
	med := NewMediator(view, sp.spawn, 1, nil)

	ctx := context.Background()
	require.NoError(t, med.Send(ctx, Info{Text: "fills the buffer"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := med.Send(cancelled, Info{Text: "no room"})
	assert.ErrorIs(t, err, context.Canceled)
}
