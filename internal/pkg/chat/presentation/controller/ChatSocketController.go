package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	iport "collabhub-realtime/internal/infrastructure/identity/port"
	"collabhub-realtime/internal/infrastructure/metrics"
	"collabhub-realtime/internal/infrastructure/realtime"
	"collabhub-realtime/internal/pkg/chat/application/engine"
	"collabhub-realtime/internal/pkg/chat/application/event"
)

// ChatSocketController handles the websocket endpoint for realtime traffic.
type ChatSocketController struct {
	authn    iport.Authenticator
	registry *realtime.Registry
	router   *engine.Router
}

func NewChatSocketController(authn iport.Authenticator, registry *realtime.Registry, router *engine.Router) *ChatSocketController {
	return &ChatSocketController{authn: authn, registry: registry, router: router}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy belongs to the edge proxy; identity is checked before upgrade.
		return true
	},
}

const maxFrameBytes = 64 << 10

// Handle authenticates the handshake, upgrades, registers the connection, pushes the
// resync snapshot and then processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ctl.authn.Authenticate(c.Request.Context(), handshake(c))
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			log.Debug("websocket upgrade failed", "user", id.UserID, "err", err)
			return
		}
		ws.SetReadLimit(maxFrameBytes)

		conn := realtime.NewConnection(id.UserID, id.Role, ws)
		conn.Start()
		ctl.registry.Register(conn)
		defer func() {
			ctl.registry.Unregister(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
			log.Debug("connection closed", "user", conn.UserID(), "conn", conn.ID())
		}()
		log.Debug("connection opened", "user", conn.UserID(), "conn", conn.ID(), "role", conn.Role())

		// The socket outlives the upgrade request; operations get their own context.
		ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
		defer cancel()

		ctl.send(conn, event.Connected{UserID: conn.UserID(), ConnectionID: conn.ID()})
		if err := ctl.router.Connect(ctx, conn); err != nil {
			log.Warn("resync failed", "user", conn.UserID(), "err", err)
		}

		for {
			data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					log.Debug("websocket read failed", "user", conn.UserID(), "err", err)
				}
				return
			}

			in, err := event.Decode(data)
			if err != nil {
				ctl.send(conn, event.MessageError{Error: "invalid payload"})
				metrics.ObserveInbound("invalid", err)
				continue
			}
			metrics.ObserveInbound(in.Type(), ctl.dispatch(ctx, conn, in))
		}
	}
}

// dispatch runs one inbound event. Events of one connection are handled in order.
func (ctl *ChatSocketController) dispatch(ctx context.Context, conn *realtime.Connection, in event.Inbound) error {
	switch ev := in.(type) {
	case event.SendMessage:
		_, err := ctl.router.SendMessage(ctx, conn, conn.UserID(), ev)
		return err
	case event.Typing:
		err := ctl.router.Typing(ctx, conn.UserID(), ev.ReceiverID)
		if err != nil {
			ctl.send(conn, engine.ErrorEvent(err, "failed to send typing signal"))
		}
		return err
	case event.ReadConversation:
		_, err := ctl.router.MarkConversationRead(ctx, conn, conn.UserID(), ev)
		return err
	case event.MarkNotificationsRead:
		_, err := ctl.router.MarkNotificationsRead(ctx, conn, conn.UserID(), ev)
		return err
	default:
		ctl.send(conn, event.MessageError{Error: "unsupported event type"})
		return errors.New("unsupported event type")
	}
}

func (ctl *ChatSocketController) send(conn *realtime.Connection, ev event.Outbound) {
	payload, err := event.Encode(ev)
	if err != nil {
		log.Error("encode outbound event", "type", ev.Type(), "err", err)
		return
	}
	_ = conn.Send(payload)
}
