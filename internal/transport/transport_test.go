package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuxSingleSlot(t *testing.T) {
	m := NewMux()
	var first, second int
	m.On("newMessage", func(json.RawMessage) { first++ })
	m.On("newMessage", func(json.RawMessage) { second++ })

	assert.Equal(t, 1, m.HandlerCount("newMessage"))
	assert.True(t, m.Dispatch("newMessage", json.RawMessage(`{}`)))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestMuxOffIsIdempotent(t *testing.T) {
	m := NewMux()
	m.Off("newMessage")
	m.On("newMessage", func(json.RawMessage) {})
	m.Off("newMessage")
	m.Off("newMessage")

	assert.Equal(t, 0, m.HandlerCount("newMessage"))
	assert.False(t, m.Dispatch("newMessage", nil))
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:5001":   "ws://localhost:5001/ws",
		"https://chat.example/":   "wss://chat.example/ws",
		"http://host/api":         "ws://host/api/ws",
		"ws://already.example:80": "ws://already.example:80/ws",
	}
	for in, want := range cases {
		got, err := WSURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := WSURL("ftp://nope")
	assert.Error(t, err)
}

func newPushServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClientDispatchesInOrder(t *testing.T) {
	frames := []string{
		`{"event":"getOnlineUsers","data":["u1","u2"]}`,
		`not json`,
		`{"event":"newMessage","data":{"_id":"m1"}}`,
		`{"event":"newMessage","data":{"_id":"m2"}}`,
	}
	srv := newPushServer(t, frames)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, srv.URL, "tok", nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var ids []string
	got := make(chan struct{})
	c.On("newMessage", func(data json.RawMessage) {
		var m struct {
			ID string `json:"_id"`
		}
		assert.NoError(t, json.Unmarshal(data, &m))
		mu.Lock()
		ids = append(ids, m.ID)
		if len(ids) == 2 {
			close(got)
		}
		mu.Unlock()
	})

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	select {
	case <-got:
	case <-ctx.Done():
		t.Fatal("timed out waiting for frames")
	}
	mu.Lock()
	assert.Equal(t, []string{"m1", "m2"}, ids)
	mu.Unlock()

	select {
	case <-c.Done():
		t.Fatal("done before close")
	default:
	}
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed after close")
	}
	err = <-runErr
	assert.True(t, errors.Is(err, ErrClosed), "got %v", err)
}

func TestDialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), srv.URL, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
