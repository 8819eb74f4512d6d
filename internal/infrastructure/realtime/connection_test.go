package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialPair returns a server-side Connection and the client websocket talking to it.
func dialPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	accepted := make(chan *Connection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- NewConnection("alice", "member", ws)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-accepted:
		return c, client
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func TestConnectionSendAndReceive(t *testing.T) {
	conn, client := dialPair(t)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	assert.Equal(t, "alice", conn.UserID())
	assert.Equal(t, "member", conn.Role())
	assert.NotEmpty(t, conn.ID())

	require.NoError(t, conn.Send([]byte(`{"type":"connected"}`)))
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(data))

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing"}`)))
	got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"typing"}`, string(got))
}

func TestConnectionSendAfterClose(t *testing.T) {
	conn, _ := dialPair(t)
	conn.Start()
	conn.Close(websocket.CloseNormalClosure, "bye")
	conn.Close(websocket.CloseNormalClosure, "twice")

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel not closed")
	}
	assert.ErrorIs(t, conn.Send([]byte(`{}`)), ErrConnectionClosed)
}

func TestConnectionClosesWhenBufferFull(t *testing.T) {
	conn, _ := dialPair(t)
	// write loop not started, so nothing drains the buffer
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, conn.Send([]byte(`{}`)))
	}
	err := conn.Send([]byte(`{}`))
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, conn.Send([]byte(`{}`)), ErrConnectionClosed)
}

func TestConnectionBufferFullDoesNotWaitOnCloseFrame(t *testing.T) {
	conn, _ := dialPair(t)
	release := make(chan struct{})
	tornDown := make(chan int, 1)
	conn.teardown = func(code int, _ string) {
		<-release
		tornDown <- code
	}
	defer close(release)

	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, conn.Send([]byte(`{}`)))
	}

	returned := make(chan error, 1)
	go func() { returned <- conn.Send([]byte(`{}`)) }()
	select {
	case err := <-returned:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("Send blocked on the close frame")
	}

	select {
	case <-conn.Done():
	default:
		t.Fatal("done channel not closed when Send returned")
	}
	assert.ErrorIs(t, conn.Send([]byte(`{}`)), ErrConnectionClosed)

	release <- struct{}{}
	select {
	case code := <-tornDown:
		assert.Equal(t, websocket.CloseGoingAway, code)
	case <-time.After(5 * time.Second):
		t.Fatal("close frame never written")
	}
}

func TestConnectionBufferFullSendsGoingAway(t *testing.T) {
	conn, client := dialPair(t)
	for i := 0; i <= sendBuffer; i++ {
		_ = conn.Send([]byte(`{}`))
	}

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
