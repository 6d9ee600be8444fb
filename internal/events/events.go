// Package events mirrors the audit log to external subscribers.
//
// The store's append-only event log is the source of truth. After a
// transaction commits, the lifecycle publishes each new audit event through a
// Publisher. Publishing is best-effort: failures are logged by the caller and
// never undo a committed change.
package events

import (
	"context"

	"github.com/steveyegge/weft/internal/types"
)

// TopicPrefix is prepended to the event type to form the subject, e.g.
// "weft.events.state_changed". Subscribe to "weft.events.>" for everything.
const TopicPrefix = "weft.events."

// TopicAll matches every weft event subject.
const TopicAll = TopicPrefix + ">"

// Topic returns the subject for an event type.
func Topic(t types.EventType) string {
	return TopicPrefix + string(t)
}

// Message is the payload published for one audit event.
type Message struct {
	Event *types.Event `json:"event"`
	// Issue is the committed issue state, nil when the issue was deleted.
	Issue *types.Issue `json:"issue,omitempty"`
}

// Publisher sends messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
