package service

import (
	"log/slog"

	"relay/internal/event"
	"relay/internal/observability/metrics"
	"relay/internal/presence"
)

// push hands ev to the connection bound to code, if any. It reports whether
// the recipient was online and accepted the event.
func push(reg *presence.Registry, code string, ev event.Event) bool {
	conn, ok := reg.Lookup(code)
	if !ok {
		return false
	}
	if err := conn.Deliver(ev); err != nil {
		metrics.EventsDroppedTotal.WithLabelValues(string(ev.Type)).Inc()
		slog.Warn("push dropped", "code", code, "type", ev.Type, "error", err)
		return false
	}
	return true
}
