package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/viewport"
	"github.com/plan-placer/backend/internal/workspace"
)

// WebSocket message types for the live viewport protocol
const (
	// Client -> Server messages
	MsgTypePointerDown = "pointer:down"
	MsgTypePointerMove = "pointer:move"
	MsgTypePointerUp   = "pointer:up"
	MsgTypeWheel       = "wheel"
	MsgTypeResize      = "resize"
	MsgTypeZoomIn      = "zoom:in"
	MsgTypeZoomOut     = "zoom:out"
	MsgTypeSelect      = "select"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeFrame = "frame"
	MsgTypeError = "error"
	MsgTypePong  = "pong"
)

// defaultMaxMessageSize bounds a single client message.
const defaultMaxMessageSize = 64 * 1024

// writeWait is the deadline for one outgoing message.
const writeWait = 10 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// PointerPayload carries a pointer or wheel event in viewport client pixels.
type PointerPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"deltaY,omitempty"`
}

// ResizePayload carries the new viewport size.
type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SelectPayload selects a machine; a null index clears the selection.
type SelectPayload struct {
	Index *int `json:"index"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler streams workspace frames and accepts viewport input over
// WebSocket.
type WebSocketHandler struct {
	sessionMgr     SessionManager
	upgrader       websocket.Upgrader
	maxMessageSize int64
}

// NewWebSocketHandler creates a WebSocket handler. maxMessageSizeKB <= 0
// uses 64KB.
func NewWebSocketHandler(sessionMgr SessionManager, maxMessageSizeKB int) *WebSocketHandler {
	limit := int64(defaultMaxMessageSize)
	if maxMessageSizeKB > 0 {
		limit = int64(maxMessageSizeKB) * 1024
	}
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessageSize: limit,
	}
}

// wsConn serializes writes to one connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *slog.Logger
}

func (c *wsConn) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Debug("failed to send message", "type", msg.Type, "err", err)
		return err
	}
	return nil
}

func (c *wsConn) sendFrame(u workspace.Update) error {
	return c.send(WSMessage{
		Type:      MsgTypeFrame,
		Payload:   mustJSON(u),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *wsConn) sendError(id, message, code string) {
	_ = c.send(WSMessage{
		Type:      MsgTypeError,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

// HandleWebSocket upgrades the connection for workspace :id. The client
// first receives the current frame, then one frame per change.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id := c.Param("id")
	ws, err := wsh.sessionMgr.Get(id)
	if err != nil {
		return NewNotFoundError("workspace", id)
	}

	raw, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer raw.Close()
	raw.SetReadLimit(wsh.maxMessageSize)
	// Drop the request read deadline set by http.Server.ReadTimeout.
	_ = raw.SetReadDeadline(time.Time{})

	conn := &wsConn{conn: raw, log: slog.With("workspace", shortID(id))}
	conn.log.Info("client connected", "remote", c.RealIP())

	updates := ws.Subscribe()
	if err := conn.sendFrame(ws.Snapshot()); err != nil {
		ws.Unsubscribe(updates)
		return nil
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for u := range updates {
			if err := conn.sendFrame(u); err != nil {
				break
			}
		}
		// The workspace closed or the client left; unblock the reader.
		conn.mu.Lock()
		_ = raw.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.mu.Unlock()
		raw.Close()
	}()

	for {
		var msg WSMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.log.Warn("connection error", "err", err)
			}
			break
		}
		wsh.sessionMgr.TouchSession(id)
		wsh.dispatch(ws, conn, msg)
	}

	if err := ws.CancelInteractions(); err != nil && !errors.Is(err, workspace.ErrClosed) {
		conn.log.Warn("failed to cancel interactions", "err", err)
	}
	ws.Unsubscribe(updates)
	<-writerDone
	conn.log.Info("client disconnected")
	return nil
}

func (wsh *WebSocketHandler) dispatch(ws *workspace.Workspace, conn *wsConn, msg WSMessage) {
	var err error
	switch msg.Type {
	case MsgTypePing:
		_ = conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		return
	case MsgTypePointerDown:
		err = pointer(ws, viewport.PointerDown, msg.Payload)
	case MsgTypePointerMove:
		err = pointer(ws, viewport.PointerMove, msg.Payload)
	case MsgTypePointerUp:
		err = pointer(ws, viewport.PointerUp, msg.Payload)
	case MsgTypeWheel:
		err = pointer(ws, viewport.Wheel, msg.Payload)
	case MsgTypeResize:
		var p ResizePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			if p.Width <= 0 || p.Height <= 0 {
				conn.sendError(msg.ID, "width and height must be positive", "INVALID_PAYLOAD")
				return
			}
			err = ws.Resize(p.Width, p.Height)
		}
	case MsgTypeZoomIn:
		err = ws.ZoomIn()
	case MsgTypeZoomOut:
		err = ws.ZoomOut()
	case MsgTypeSelect:
		var p SelectPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			if p.Index == nil {
				err = ws.ClearSelection()
			} else {
				err = ws.Select(*p.Index)
			}
		}
	default:
		conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		return
	}

	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			conn.sendError(msg.ID, "Invalid payload: "+err.Error(), "INVALID_PAYLOAD")
			return
		}
		apiErr := mapError(err, msg.Type+" failed")
		conn.sendError(msg.ID, apiErr.Message, apiErr.Code)
	}
}

func pointer(ws *workspace.Workspace, kind viewport.PointerKind, payload json.RawMessage) error {
	var p PointerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	return ws.Pointer(viewport.PointerEvent{Kind: kind, ClientX: p.X, ClientY: p.Y, DeltaY: p.DeltaY})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
