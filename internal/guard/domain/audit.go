package domain

import (
	"context"
	"time"
)

// AuditAction names the kind of mutation recorded in an AuditRecord.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
	AuditAdd    AuditAction = "ADD"
	AuditRemove AuditAction = "REMOVE"
)

// AuditRecord is an append-only "what changed, by whom, when" entry.
type AuditRecord struct {
	ID        string      `json:"id"`
	GuildID   int64       `json:"guild_id"`
	Action    AuditAction `json:"change_type"`
	Field     string      `json:"field_name,omitempty"`
	OldValue  any         `json:"old_value,omitempty"`
	NewValue  any         `json:"new_value,omitempty"`
	UserID    int64       `json:"user_id,omitempty"`
	Command   string      `json:"command_name,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// EmojiAuditInfo is the NewValue/OldValue payload of blacklist audit records.
type EmojiAuditInfo struct {
	Type    EmojiType `json:"emoji_type"`
	Value   string    `json:"emoji_value"`
	Name    *string   `json:"emoji_name"`
	Display string    `json:"display"`
}

// OperationMetric describes one store call.
type OperationMetric struct {
	Operation string        // leading SQL verb, e.g. SELECT
	Table     string        // target relation or "unknown"
	GuildID   *int64        // first positional parameter when it is a positive integer
	Duration  time.Duration // wall-clock time including retries
	Rows      int64         // rows returned or affected
	Success   bool
	Error     string
	Timestamp time.Time
}

// Key groups metrics for performance statistics, e.g. SELECT_guild_configs_FAILED.
func (m OperationMetric) Key() string {
	k := m.Operation + "_" + m.Table
	if !m.Success {
		k += "_FAILED"
	}
	return k
}

// Actor identifies who triggered a mutation. It travels on the request context.
type Actor struct {
	UserID  int64
	Command string
}

type actorKey struct{}

// WithActor attaches the acting user and command to ctx for audit records.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor attached to ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
