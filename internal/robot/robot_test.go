package robot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtalk/streamtalk-go/internal/interpret"
	"github.com/streamtalk/streamtalk-go/internal/session"
	"github.com/streamtalk/streamtalk-go/internal/stream"
)

type snapshot struct {
	contextJSON string
	cursor      string
}

type fakeStore struct {
	sess    *session.Session
	loadErr error
	saveErr error
	saves   []snapshot
}

func (f *fakeStore) Load(ctx context.Context, id string) (*session.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.sess, nil
}

func (f *fakeStore) SaveState(ctx context.Context, id string, s *session.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	data, _ := json.Marshal(s.Context)
	f.saves = append(f.saves, snapshot{contextJSON: string(data), cursor: s.Cursor})
	return nil
}

type interpretResult struct {
	resp *interpret.Response
	err  error
}

type fakeInterp struct {
	results []interpretResult
	calls   int
}

func (f *fakeInterp) Interpret(ctx context.Context, script string, sessionContext any) (*interpret.Response, error) {
	if f.calls >= len(f.results) {
		return nil, errors.New("interpreter called more times than scripted")
	}
	r := f.results[f.calls]
	f.calls++
	return r.resp, r.err
}

type readCall struct {
	entries []stream.Entry
	err     error
}

type fakeChat struct {
	reads     []readCall
	readIdx   int
	lastIDs   []string
	appended  []map[string]string
	appendErr error
}

func (f *fakeChat) RangeAll(ctx context.Context, chatID string) ([]stream.Entry, error) {
	return nil, nil
}

func (f *fakeChat) ReadAfter(ctx context.Context, chatID, lastID string, count int64, maxWait time.Duration) ([]stream.Entry, error) {
	f.lastIDs = append(f.lastIDs, lastID)
	if f.readIdx >= len(f.reads) {
		return nil, nil
	}
	r := f.reads[f.readIdx]
	f.readIdx++
	return r.entries, r.err
}

func (f *fakeChat) Append(ctx context.Context, chatID string, values map[string]string) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.appended = append(f.appended, values)
	return "0-0", nil
}

func testSession() *session.Session {
	s := session.New("greet")
	s.ChatID = "room"
	return s
}

func testOptions() Options {
	return Options{ReadCount: 10, BlockWait: 5 * time.Millisecond}
}

func newOrchestrator(store Store, chat *fakeChat, interp Interpreter) *Orchestrator {
	return New(store, chat, chat, interp, testOptions(), nil)
}

func TestRun_MissingSession(t *testing.T) {
	store := &fakeStore{loadErr: session.ErrNotFound}
	orc := newOrchestrator(store, &fakeChat{}, &fakeInterp{})

	state, err := orc.Run(context.Background(), "nope")
	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRun_GreetWaitThenFinish(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	chat := &fakeChat{reads: []readCall{
		{entries: []stream.Entry{{ID: "5-0", Values: map[string]string{"Customer": "Hi"}}}},
	}}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{Command: "Wait", Context: map[string]any{}, UserOutput: json.RawMessage(`"Hello!"`)}},
		{resp: &interpret.Response{Command: "Finish", Context: map[string]any{"x": 1}}},
	}}

	orc := newOrchestrator(store, chat, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, Finished, state)

	// Greeting published once, attributed to the robot label.
	require.Len(t, chat.appended, 1)
	assert.Equal(t, map[string]string{"Robot": "Hello!"}, chat.appended[0])

	// The wait read started at the session cursor and advanced it.
	require.NotEmpty(t, chat.lastIDs)
	assert.Equal(t, stream.StartNew, chat.lastIDs[0])
	assert.Equal(t, "5-0", sess.Cursor)

	// Finish wiped the context.
	assert.Empty(t, sess.Context)
	last := store.saves[len(store.saves)-1]
	assert.Equal(t, "{}", last.contextJSON)
}

func TestRun_WaitCollectsOnlyUsernameTextsInOrder(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	chat := &fakeChat{reads: []readCall{
		{entries: []stream.Entry{
			{ID: "1-0", Values: map[string]string{"Robot": "ignored"}},
		}},
		{entries: []stream.Entry{
			{ID: "2-0", Values: map[string]string{"Customer": "first"}},
			{ID: "3-0", Values: map[string]string{"Customer": "second"}},
		}},
	}}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{Command: "Wait", Context: map[string]any{}}},
		{resp: &interpret.Response{Command: "Pause", Context: map[string]any{}}},
	}}

	orc := newOrchestrator(store, chat, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, Paused, state)

	assert.Equal(t, []string{"first", "second"}, sess.UserInput())
	assert.Equal(t, "3-0", sess.Cursor)
}

func TestRun_WaitRetriesTransportErrors(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	chat := &fakeChat{reads: []readCall{
		{err: errors.New("connection reset")},
		{entries: []stream.Entry{{ID: "7-0", Values: map[string]string{"Customer": "back"}}}},
	}}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{Command: "Wait", Context: map[string]any{}}},
		{resp: &interpret.Response{Command: "Finish", Context: map[string]any{}}},
	}}

	orc := newOrchestrator(store, chat, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, Finished, state)
	assert.Equal(t, "7-0", sess.Cursor)
}

func TestRun_InterpreterHTTPErrorFailsWithoutMutation(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	chat := &fakeChat{}
	interpFake := &fakeInterp{results: []interpretResult{
		{err: &interpret.StatusError{StatusCode: 500, Body: "boom"}},
	}}

	orc := newOrchestrator(store, chat, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	assert.Equal(t, Failed, state)

	var statusErr *interpret.StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Empty(t, store.saves, "no document mutation after a failed call")
	assert.Empty(t, chat.appended)
}

func TestRun_UnknownVerdictFailsPreservingState(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{Command: "Explode", Context: map[string]any{"step": 9}}},
	}}

	orc := newOrchestrator(store, &fakeChat{}, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	assert.Equal(t, Failed, state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Explode")

	// The merged context stays in memory for inspection but is not persisted.
	assert.Empty(t, store.saves)
	assert.Equal(t, map[string]any{"step": 9}, sess.Context[session.ContextKey])
}

func TestRun_OperatorEscalation(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{Command: "Operator", Context: map[string]any{
			"operator_message": "angry customer, please help",
		}}},
	}}

	orc := newOrchestrator(store, &fakeChat{}, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, Escalated, state)
	assert.Equal(t, "angry customer, please help", sess.Context[session.OperatorMessageKey])
	assert.Len(t, store.saves, 1)
}

func TestRun_PersistenceFailureIsFatal(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess, saveErr: errors.New("redis down")}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{Command: "Finish", Context: map[string]any{}}},
	}}

	orc := newOrchestrator(store, &fakeChat{}, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	assert.Equal(t, Failed, state)
	assert.ErrorContains(t, err, "redis down")
}

func TestRun_PublishesEveryOutputInOrder(t *testing.T) {
	sess := testSession()
	store := &fakeStore{sess: sess}
	chat := &fakeChat{}
	interpFake := &fakeInterp{results: []interpretResult{
		{resp: &interpret.Response{
			Command:    "Finish",
			Context:    map[string]any{},
			UserOutput: json.RawMessage(`["one", "two"]`),
		}},
	}}

	orc := newOrchestrator(store, chat, interpFake)
	state, err := orc.Run(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, Finished, state)
	require.Len(t, chat.appended, 2)
	assert.Equal(t, map[string]string{"Robot": "one"}, chat.appended[0])
	assert.Equal(t, map[string]string{"Robot": "two"}, chat.appended[1])
}
