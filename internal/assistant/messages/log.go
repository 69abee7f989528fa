// Package messages keeps the per-session conversation log of tool calls.
//
// The log is append-only with one exception: the newest assistant message is
// created Pending and later settles in place to Resolved or Failed. At most
// one message is Pending at a time.
package messages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

var (
	ErrPendingExists = errors.New("a message is already pending")
	ErrNotPending    = errors.New("message is not pending")
)

// Repository mirrors the log into durable storage. Mirroring is best effort:
// failures are logged and never fail the in-memory operation.
type Repository interface {
	AddMessage(ctx context.Context, sessionID string, message *model.Message) error
	ReplaceMessage(ctx context.Context, sessionID string, index int, message *model.Message) error
	LoadHistory(ctx context.Context, sessionID string) ([]*model.Message, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

type Option func(*Log)

func WithRepository(repo Repository) Option {
	return func(l *Log) { l.repo = repo }
}

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

type Log struct {
	mu        sync.Mutex
	sessionID string
	repo      Repository
	now       func() time.Time
	messages  []*model.Message
	pending   int

	// slots maps a message ID to its position in the repository list.
	// Messages whose AddMessage failed have no slot.
	slots     map[string]int
	persisted int
}

func NewLog(sessionID string, opts ...Option) *Log {
	l := &Log{sessionID: sessionID, now: time.Now, pending: -1, slots: map[string]int{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Log) SessionID() string {
	return l.sessionID
}

// Append records the user side of a tool call. User messages are born resolved.
func (l *Log) Append(ctx context.Context, text, toolID string) model.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	m := &model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Text:      text,
		ToolID:    toolID,
		State:     model.MessageResolved,
		CreatedAt: now,
		SettledAt: &now,
	}
	l.appendLocked(ctx, m)
	return *m
}

// BeginPending appends the assistant placeholder for an in-flight call.
func (l *Log) BeginPending(ctx context.Context, toolID string) (model.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending >= 0 {
		return model.Message{}, ErrPendingExists
	}
	m := &model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		ToolID:    toolID,
		State:     model.MessagePending,
		CreatedAt: l.now(),
	}
	l.appendLocked(ctx, m)
	l.pending = len(l.messages) - 1
	return *m, nil
}

// Resolve settles the pending message id with a normalized result.
func (l *Log) Resolve(ctx context.Context, id, text string, res *model.Result) (model.Message, error) {
	return l.settle(ctx, id, func(m *model.Message) {
		m.State = model.MessageResolved
		m.Text = text
		m.Result = res
	})
}

// Fail settles the pending message id with a user-facing failure text.
func (l *Log) Fail(ctx context.Context, id, text string, cause error) (model.Message, error) {
	return l.settle(ctx, id, func(m *model.Message) {
		m.State = model.MessageFailed
		m.Text = text
		if cause != nil {
			m.Error = cause.Error()
		}
	})
}

func (l *Log) settle(ctx context.Context, id string, apply func(*model.Message)) (model.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending < 0 || l.messages[l.pending].ID != id {
		return model.Message{}, fmt.Errorf("settle %s: %w", id, ErrNotPending)
	}
	m := l.messages[l.pending]
	apply(m)
	now := l.now()
	m.SettledAt = &now
	l.pending = -1

	l.replaceLocked(ctx, m)
	return *m, nil
}

// Messages returns a snapshot of the log in insertion order.
func (l *Log) Messages() []model.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = *m
	}
	return out
}

// Pending returns the in-flight assistant message, if any.
func (l *Log) Pending() (model.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending < 0 {
		return model.Message{}, false
	}
	return *l.messages[l.pending], true
}

// Reset clears the log, including any pending placeholder.
func (l *Log) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.pending = -1
	l.slots = map[string]int{}
	if l.repo == nil {
		return
	}
	if err := l.repo.ClearHistory(ctx, l.sessionID); err != nil {
		// old entries stay in the list; new ones land after them
		logx.Error().Err(err).Str("session_id", l.sessionID).Msg("failed to clear persisted history")
		return
	}
	l.persisted = 0
}

// Restore replaces the in-memory log with the persisted history. A message
// left pending by a previous process is marked failed.
func (l *Log) Restore(ctx context.Context) error {
	if l.repo == nil {
		return nil
	}
	history, err := l.repo.LoadHistory(ctx, l.sessionID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = history
	l.pending = -1
	l.slots = make(map[string]int, len(history))
	l.persisted = len(history)
	for i, m := range history {
		l.slots[m.ID] = i
	}
	for _, m := range l.messages {
		if m.State != model.MessagePending {
			continue
		}
		now := l.now()
		m.State = model.MessageFailed
		m.Error = "interrupted"
		m.SettledAt = &now
		l.replaceLocked(ctx, m)
	}
	return nil
}

func (l *Log) appendLocked(ctx context.Context, m *model.Message) {
	l.messages = append(l.messages, m)
	if l.repo == nil {
		return
	}
	if err := l.repo.AddMessage(ctx, l.sessionID, m); err != nil {
		logx.Error().Err(err).Str("session_id", l.sessionID).Str("message_id", m.ID).Msg("failed to persist message")
		return
	}
	l.slots[m.ID] = l.persisted
	l.persisted++
}

// replaceLocked rewrites m at the slot it was persisted to. A message that
// never reached the repository is left out rather than written over another.
func (l *Log) replaceLocked(ctx context.Context, m *model.Message) {
	if l.repo == nil {
		return
	}
	slot, ok := l.slots[m.ID]
	if !ok {
		logx.Warn().Str("session_id", l.sessionID).Str("message_id", m.ID).Msg("message was never persisted; skipping update")
		return
	}
	if err := l.repo.ReplaceMessage(ctx, l.sessionID, slot, m); err != nil {
		logx.Error().Err(err).Str("session_id", l.sessionID).Str("message_id", m.ID).Msg("failed to persist settled message")
	}
}
