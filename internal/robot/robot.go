// Package robot drives a scripted conversation: it replays the session
// context through the interpretation service and translates each verdict
// into log publication, a wait for human input, or a terminal state.
package robot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/streamtalk/streamtalk-go/internal/interpret"
	"github.com/streamtalk/streamtalk-go/internal/session"
	"github.com/streamtalk/streamtalk-go/internal/stream"
)

// State is the terminal state of an orchestrator run. Only Paused is
// resumable by running the same session id again.
type State string

const (
	Finished  State = "finished"
	Paused    State = "paused"
	Escalated State = "escalated"
	Failed    State = "failed"
)

// Store is the slice of the session store the orchestrator needs.
type Store interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	SaveState(ctx context.Context, id string, s *session.Session) error
}

// Interpreter is the request/response oracle deciding each turn.
type Interpreter interface {
	Interpret(ctx context.Context, script string, sessionContext any) (*interpret.Response, error)
}

// Options tune the wait cycle's blocking reads.
type Options struct {
	ReadCount int64
	BlockWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadCount <= 0 {
		o.ReadCount = 10
	}
	if o.BlockWait <= 0 {
		o.BlockWait = 2 * time.Second
	}
	return o
}

// Orchestrator runs one session at a time. The session document is mutated
// only here, one interpretation cycle at a time.
type Orchestrator struct {
	store  Store
	reader stream.Reader
	writer stream.Writer
	interp Interpreter
	opts   Options
	log    *zap.Logger
}

// New wires an orchestrator from its collaborators.
func New(store Store, r stream.Reader, w stream.Writer, interp Interpreter, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:  store,
		reader: r,
		writer: w,
		interp: interp,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// Run executes the session until a terminal state. The final context is
// logged on every termination path for post-mortem inspection.
func (o *Orchestrator) Run(ctx context.Context, sessionID string) (State, error) {
	sess, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return Failed, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	log := o.log.With(zap.String("session_id", sessionID), zap.String("script", sess.Script))
	defer func() {
		log.Info("session stopped", zap.Any("context", sess.Context))
	}()

	for {
		log.Debug("invoking interpreter", zap.Any("context", sess.Context))
		resp, err := o.interp.Interpret(ctx, sess.Script, sess.Context)
		if err != nil {
			// No document mutation after a failed call.
			return Failed, fmt.Errorf("interpret: %w", err)
		}

		if err := o.apply(ctx, sess, resp); err != nil {
			return Failed, err
		}

		verdict := resp.Verdict()
		log.Debug("verdict", zap.Stringer("command", verdict))
		switch verdict {
		case interpret.Wait:
			sess.ResetUserInput()
			if err := o.store.SaveState(ctx, sessionID, sess); err != nil {
				return Failed, fmt.Errorf("persist session: %w", err)
			}
			if err := o.waitForUserInput(ctx, sess, log); err != nil {
				return Failed, err
			}
			if err := o.store.SaveState(ctx, sessionID, sess); err != nil {
				return Failed, fmt.Errorf("persist session: %w", err)
			}

		case interpret.Pause:
			if err := o.store.SaveState(ctx, sessionID, sess); err != nil {
				return Failed, fmt.Errorf("persist session: %w", err)
			}
			return Paused, nil

		case interpret.Finish:
			sess.ClearContext()
			if err := o.store.SaveState(ctx, sessionID, sess); err != nil {
				return Failed, fmt.Errorf("persist session: %w", err)
			}
			return Finished, nil

		case interpret.Operator:
			if msg, ok := operatorMessage(resp); ok {
				sess.SetOperatorMessage(msg)
			}
			if err := o.store.SaveState(ctx, sessionID, sess); err != nil {
				return Failed, fmt.Errorf("persist session: %w", err)
			}
			return Escalated, nil

		default:
			// State is left as-is for inspection.
			return Failed, fmt.Errorf("unexpected verdict %q", resp.Command)
		}
	}
}

// apply publishes the response's user output as the robot participant and
// merges the returned context sub-document into the session.
func (o *Orchestrator) apply(ctx context.Context, sess *session.Session, resp *interpret.Response) error {
	for _, text := range resp.Outputs() {
		if _, err := o.writer.Append(ctx, sess.ChatID, map[string]string{sess.Robot: text}); err != nil {
			return fmt.Errorf("publish output: %w", err)
		}
	}
	sess.MergeScriptContext(resp.Context)
	return nil
}

// waitForUserInput blocks until at least one entry attributed to the
// session's username appears after the cursor. Every consumed entry
// advances the cursor; texts from other participants are skipped. Transport
// errors are logged and retried, never fatal here.
func (o *Orchestrator) waitForUserInput(ctx context.Context, sess *session.Session, log *zap.Logger) error {
	lastID := sess.Cursor
	if lastID == "" {
		lastID = stream.StartNew
	}

	collected := 0
	for collected == 0 {
		entries, err := o.reader.ReadAfter(ctx, sess.ChatID, lastID, o.opts.ReadCount, o.opts.BlockWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("wait read failed, retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.opts.BlockWait):
			}
			continue
		}
		for _, e := range entries {
			for from, text := range e.Values {
				if from == sess.Username {
					sess.AppendUserInput(text)
					collected++
				}
			}
			lastID = e.ID
			sess.Cursor = e.ID
		}
	}
	return nil
}

// operatorMessage pulls the escalation message out of the interpreter's
// context sub-document, when one was provided.
func operatorMessage(resp *interpret.Response) (string, bool) {
	m, ok := resp.Context.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m[session.OperatorMessageKey].(string)
	return msg, ok
}
