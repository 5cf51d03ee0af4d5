package httptransport

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, conv Conversation, query string) (*websocket.Conn, *Server) {
	t.Helper()
	s := NewServer(":0", conv)
	ts := httptest.NewServer(s.Handler(context.Background()))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, s
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocket_ChatFlow(t *testing.T) {
	conv := &fakeConversation{}
	conn, _ := dialWS(t, conv, "?sessionId=ws1")

	require.NoError(t, conn.WriteJSON(frame{Type: frameChat, Message: "hello"}))

	assert.Equal(t, frame{Type: frameThinking}, readFrame(t, conn))
	assert.Equal(t, frame{Type: frameResponse, Message: "echo: hello"}, readFrame(t, conn))

	conv.mu.Lock()
	defer conv.mu.Unlock()
	assert.Equal(t, []string{"ws1"}, conv.sessions)
}

func TestWebSocket_TurnsAreProcessedInOrder(t *testing.T) {
	conn, _ := dialWS(t, &fakeConversation{}, "")

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(frame{Type: frameChat, Message: fmt.Sprintf("m%d", i)}))
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, frameThinking, readFrame(t, conn).Type)
		assert.Equal(t, frame{Type: frameResponse, Message: fmt.Sprintf("echo: m%d", i)}, readFrame(t, conn))
	}
}

func TestWebSocket_ErrorFrames(t *testing.T) {
	tests := []struct {
		name    string
		conv    *fakeConversation
		payload string
		want    string
	}{
		{name: "malformed", conv: &fakeConversation{}, payload: `{"type":`, want: "Invalid message format"},
		{name: "unknown type", conv: &fakeConversation{}, payload: `{"type":"ping"}`, want: "Unsupported message type"},
		{name: "empty message", conv: &fakeConversation{}, payload: `{"type":"chat","message":""}`, want: "invalid input: message is required"},
		{
			name:    "processing error",
			conv:    &fakeConversation{turnErr: fmt.Errorf("%w: database is locked", core.ErrProcessing)},
			payload: `{"type":"chat","message":"hi"}`,
			want:    core.UserFacingError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _ := dialWS(t, tt.conv, "")
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))

			f := readFrame(t, conn)
			assert.Equal(t, frameError, f.Type)
			assert.Equal(t, tt.want, f.Message)
		})
	}
}

func TestWebSocket_ShutdownClosesConnections(t *testing.T) {
	conn, s := dialWS(t, &fakeConversation{}, "")

	require.Eventually(t, func() bool { return s.wsConn.len() == 1 }, time.Second, 5*time.Millisecond)

	s.wsConn.closeAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool { return s.wsConn.len() == 0 }, 2*time.Second, 5*time.Millisecond)
}
