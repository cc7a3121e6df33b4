// Package session holds the conversation session document and its RedisJSON
// store.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/streamtalk/streamtalk-go/internal/stream"
)

// Default participant labels for a fresh session.
const (
	DefaultUsername = "Customer"
	DefaultRobot    = "Robot"
	DefaultOperator = "Operator"
)

// Context sub-fields owned by the orchestrator. Everything else inside
// Context is opaque and passed through to the interpreter verbatim.
const (
	ContextKey         = "context"
	UserInputKey       = "user_input"
	OperatorMessageKey = "operator_message"
)

// Session is one conversation instance. It is mutated only by the
// orchestrator, one interpretation cycle at a time.
type Session struct {
	ChatID    string         `json:"chat_id"`
	Started   int64          `json:"started"`
	Script    string         `json:"script"`
	Username  string         `json:"username"`
	Robot     string         `json:"robot"`
	Operator  string         `json:"operator"`
	Timestamp int64          `json:"timestamp"`
	Cursor    string         `json:"cursor"`
	Context   map[string]any `json:"context"`
}

// New creates a session for the given interpretation script with a fresh
// chat stream key and default participant labels.
func New(script string) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		ChatID:    uuid.NewString(),
		Started:   now,
		Script:    script,
		Username:  DefaultUsername,
		Robot:     DefaultRobot,
		Operator:  DefaultOperator,
		Timestamp: now,
		Cursor:    stream.StartNew,
		Context:   map[string]any{},
	}
}

// Touch refreshes the last-activity timestamp.
func (s *Session) Touch() {
	s.Timestamp = time.Now().UnixMilli()
}

// MergeScriptContext replaces the interpreter-owned context sub-document.
func (s *Session) MergeScriptContext(v any) {
	s.ensure()
	s.Context[ContextKey] = v
}

// ResetUserInput clears collected user input ahead of a wait cycle.
func (s *Session) ResetUserInput() {
	s.ensure()
	s.Context[UserInputKey] = []any{}
}

// AppendUserInput records one consumed user message.
func (s *Session) AppendUserInput(text string) {
	s.ensure()
	inp, _ := s.Context[UserInputKey].([]any)
	s.Context[UserInputKey] = append(inp, text)
}

// UserInput returns the collected user messages in consumption order.
func (s *Session) UserInput() []string {
	inp, _ := s.Context[UserInputKey].([]any)
	out := make([]string, 0, len(inp))
	for _, v := range inp {
		if t, ok := v.(string); ok {
			out = append(out, t)
		}
	}
	return out
}

// SetOperatorMessage records the escalation message handed to a human
// operator.
func (s *Session) SetOperatorMessage(text string) {
	s.ensure()
	s.Context[OperatorMessageKey] = text
}

// ClearContext drops the whole context document.
func (s *Session) ClearContext() {
	s.Context = map[string]any{}
}

func (s *Session) ensure() {
	if s.Context == nil {
		s.Context = map[string]any{}
	}
}
