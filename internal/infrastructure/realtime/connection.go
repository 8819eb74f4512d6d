package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	sendBuffer = 128
)

// ErrConnectionClosed is returned by Send once the connection is gone.
var ErrConnectionClosed = errors.New("realtime: connection closed")

// Handle is a live connection as seen by the registry and the fanout.
type Handle interface {
	ID() string
	UserID() string
	Send(payload []byte) error
}

// Connection wraps a websocket and coordinates outbound writes via a buffered channel.
// A user may hold any number of connections; each is safe for concurrent use.
type Connection struct {
	id          string
	userID      string
	role        string
	connectedAt time.Time

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}

	// teardown writes the close frame and releases the socket; replaced in tests.
	teardown func(code int, reason string)
}

// NewConnection constructs a Connection for the given user.
func NewConnection(userID, role string, ws *websocket.Conn) *Connection {
	c := &Connection{
		id:          uuid.NewString(),
		userID:      userID,
		role:        role,
		connectedAt: time.Now().UTC(),
		ws:          ws,
		send:        make(chan []byte, sendBuffer),
		closed:      make(chan struct{}),
	}
	c.teardown = c.writeClose
	return c
}

func (c *Connection) ID() string             { return c.id }
func (c *Connection) UserID() string         { return c.userID }
func (c *Connection) Role() string           { return c.role }
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// Done is closed when the connection terminates.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	go c.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the buffer is full,
// the connection is marked closed at once and the close frame is written in the
// background, so Send never waits on the socket.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return ErrConnectionClosed
	default:
		if c.markClosed() {
			go c.teardown(websocket.CloseGoingAway, "send buffer full")
		}
		return fmt.Errorf("%w: send buffer full", ErrConnectionClosed)
	}
}

// ReadMessage blocks for the next client frame.
func (c *Connection) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	if c.markClosed() {
		c.teardown(code, reason)
	}
}

// markClosed closes Done and reports whether this call did it.
func (c *Connection) markClosed() bool {
	first := false
	c.once.Do(func() {
		close(c.closed)
		first = true
	})
	return first
}

func (c *Connection) writeClose(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = c.ws.Close()
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
