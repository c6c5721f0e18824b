package ws

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/server/middleware"
)

// Hub streams flag-change events to WebSocket clients, backed by the
// configured event broker (in-process or Redis pub/sub).
type Hub struct {
	broker domain.EventBroker
}

func NewHub(broker domain.EventBroker) *Hub {
	return &Hub{broker: broker}
}

// ServeFlags handles WebSocket connections for live flag events.
// Subscribes to the authenticated tenant's flag channel and forwards each
// FlagEvent as a JSON text message.
func (h *Hub) ServeFlags(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	channel := domain.FlagChannel(tenant.ID)

	messages, cleanup, err := h.broker.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
