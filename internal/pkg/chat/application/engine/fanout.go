package engine

import (
	"github.com/charmbracelet/log"

	"collabhub-realtime/internal/infrastructure/metrics"
	"collabhub-realtime/internal/infrastructure/realtime"
	"collabhub-realtime/internal/pkg/chat/application/event"
)

// Fanout delivers encoded events to the live connections of a user. The in-process
// registry is one implementation; a cross-node bus would be another.
type Fanout interface {
	Deliver(userID string, payload []byte) int
}

var _ Fanout = (*realtime.Registry)(nil)

// emit encodes ev and hands it to every connection of userID.
func emit(f Fanout, userID string, ev event.Outbound) int {
	payload, err := event.Encode(ev)
	if err != nil {
		log.Error("encode outbound event", "type", ev.Type(), "err", err)
		return 0
	}
	n := f.Deliver(userID, payload)
	metrics.ObserveDelivery(ev.Type(), n)
	return n
}

// reply writes ev to a single connection. Transport failures are only logged.
func reply(h realtime.Handle, ev event.Outbound) {
	if h == nil {
		return
	}
	payload, err := event.Encode(ev)
	if err != nil {
		log.Error("encode outbound event", "type", ev.Type(), "err", err)
		return
	}
	if err := h.Send(payload); err != nil {
		log.Debug("reply dropped", "type", ev.Type(), "conn", h.ID(), "err", err)
		return
	}
	metrics.ObserveDelivery(ev.Type(), 1)
}
