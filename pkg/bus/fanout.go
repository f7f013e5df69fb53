package bus

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/odvcencio/respview/pkg/mirror"
	"github.com/odvcencio/respview/pkg/observability"
)

// DefaultSubjectPrefix is the subject root for mirror traffic.
const DefaultSubjectPrefix = "respview.mirror"

// Subject returns "<prefix>.<sessionID>.<frame|status>". Dots in the session
// id would add tokens, so they are replaced.
func Subject(prefix, sessionID string, t mirror.MessageType) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	kind := string(t)
	if i := strings.LastIndex(kind, "/"); i >= 0 {
		kind = kind[i+1:]
	}
	return prefix + "." + strings.ReplaceAll(sessionID, ".", "_") + "." + kind
}

// Fanout wraps a UI channel so every outbound message is also published on
// the bus. Bus failures are logged and never reach the UI channel's caller.
type Fanout struct {
	next   mirror.Channel
	bus    MessageBus
	prefix string
	log    *observability.Logger
}

// NewFanout returns next unchanged when b is nil.
func NewFanout(next mirror.Channel, b MessageBus, prefix string, log *observability.Logger) mirror.Channel {
	if b == nil {
		return next
	}
	if log == nil {
		log = observability.NewNop()
	}
	return &Fanout{next: next, bus: b, prefix: prefix, log: log}
}

func (f *Fanout) Send(ctx context.Context, msg mirror.Outbound) error {
	err := f.next.Send(ctx, msg)
	f.publish(ctx, msg)
	return err
}

func (f *Fanout) publish(ctx context.Context, msg mirror.Outbound) {
	sessionID, _ := msg.Scope()
	subject := Subject(f.prefix, sessionID, msg.Type())
	// Frames are large; skip encoding when a local bus has no listener.
	if in, ok := f.bus.(Interest); ok && !in.HasSubscribers(subject) {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		f.log.Warn("bus encode failed", "type", msg.Type(), "error", err)
		return
	}
	if err := f.bus.Publish(ctx, subject, data); err != nil {
		f.log.Warn("bus publish failed", "session_id", sessionID, "type", msg.Type(), "error", err)
	}
}
