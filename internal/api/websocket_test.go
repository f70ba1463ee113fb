package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/plan-placer/backend/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWorkspace(t *testing.T, env *testEnv, id string) *websocket.Conn {
	t.Helper()
	RegisterWebSocketRoutes(env.e, env.handlers)
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/workspaces/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	msg := WSMessage{Type: msgType, ID: msgType, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(WSMessage) bool) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func frameOf(t *testing.T, msg WSMessage) workspace.Update {
	t.Helper()
	var u workspace.Update
	require.NoError(t, json.Unmarshal(msg.Payload, &u))
	return u
}

func TestWebSocket_DragOverSocket(t *testing.T) {
	env := newTestEnv(t, 0)
	ws := env.readyWorkspace(t)
	_, _, err := ws.AddMachine("Press")
	require.NoError(t, err)

	conn := dialWorkspace(t, env, ws.ID())

	first := readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeFrame })
	u := frameOf(t, first)
	require.Len(t, u.Machines, 1)
	assert.Equal(t, "ready", u.Frame.State)

	send(t, conn, MsgTypePing, nil)
	pong := readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypePong })
	assert.Equal(t, MsgTypePing, pong.ID)

	send(t, conn, MsgTypePointerDown, PointerPayload{X: 400, Y: 300})
	send(t, conn, MsgTypePointerMove, PointerPayload{X: 575, Y: 400})
	send(t, conn, MsgTypePointerUp, PointerPayload{X: 575, Y: 400})

	readUntil(t, conn, func(m WSMessage) bool {
		if m.Type != MsgTypeFrame {
			return false
		}
		u := frameOf(t, m)
		return len(u.Machines) == 1 && u.Machines[0].X == 3.5 && u.Machines[0].Y == -2
	})
	assert.False(t, ws.Frame().Markers[0].Dragging)
}

func TestWebSocket_Errors(t *testing.T) {
	env := newTestEnv(t, 0)
	ws := env.readyWorkspace(t)
	conn := dialWorkspace(t, env, ws.ID())
	readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeFrame })

	send(t, conn, "teleport", nil)
	msg := readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeError })
	var resp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	assert.Equal(t, "INVALID_TYPE", resp.Code)

	send(t, conn, MsgTypeSelect, SelectPayload{Index: new(int)})
	msg = readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeError })
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	assert.Equal(t, "NOT_FOUND", resp.Code)
	assert.Equal(t, MsgTypeSelect, msg.ID)

	send(t, conn, MsgTypeResize, ResizePayload{Width: -1, Height: 10})
	msg = readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeError })
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	assert.Equal(t, "INVALID_PAYLOAD", resp.Code)
}

func TestWebSocket_ResizeAndZoom(t *testing.T) {
	env := newTestEnv(t, 0)
	ws := env.readyWorkspace(t)
	conn := dialWorkspace(t, env, ws.ID())
	readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeFrame })

	send(t, conn, MsgTypeResize, ResizePayload{Width: 1000, Height: 500})
	send(t, conn, MsgTypeZoomIn, nil)
	readUntil(t, conn, func(m WSMessage) bool {
		if m.Type != MsgTypeFrame {
			return false
		}
		cam := frameOf(t, m).Frame.Camera
		return cam != nil && cam.Width == 1000 && cam.Zoom > 59.99
	})
}

func TestWebSocket_ClosedWithWorkspace(t *testing.T) {
	env := newTestEnv(t, 0)
	ws := env.readyWorkspace(t)
	conn := dialWorkspace(t, env, ws.ID())
	readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeFrame })

	require.NoError(t, env.sessions.Delete(ws.ID()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			return
		}
	}
}

func TestWebSocket_UnknownWorkspace(t *testing.T) {
	env := newTestEnv(t, 0)
	RegisterWebSocketRoutes(env.e, env.handlers)
	SetupMiddleware(env.e, false)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/workspaces/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
