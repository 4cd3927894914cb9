// Package ws streams session UI updates to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/hub"
	"github.com/lawrencecchen/autobuild/internal/session"
)

const (
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// SessionGetter reads session snapshots.
type SessionGetter interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Server handles WebSocket connections.
type Server struct {
	hub      *hub.Hub
	sessions SessionGetter
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(h *hub.Hub, sessions SessionGetter) *Server {
	return &Server{
		hub:      h,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/sessions/:session_id/ws", s.HandleWebSocket)
}

// HandleWebSocket upgrades the connection, sends the current UI list and
// then forwards every update of the session.
// GET /v1/sessions/:session_id/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	sessionID := c.Param("session_id")
	ctx := c.Request().Context()

	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade WebSocket: %v", err)
		return nil
	}

	conn := s.hub.NewConnection(ws, sessionID)
	s.hub.Register(conn)
	ws.SetReadLimit(maxMessageSize)

	// Read after registering so no update between the two is lost.
	sess, err := s.sessions.GetSession(context.WithoutCancel(ctx), sessionID)
	if err == nil {
		snapshot := hub.SnapshotMessage{
			Type:      hub.TypeSnapshot,
			SessionID: sessionID,
			Ts:        time.Now().UnixMilli(),
			UI:        sess.UI,
		}
		if err := s.hub.SendJSONToConnection(conn, snapshot); err != nil {
			log.Printf("WARN: failed to send snapshot to %s: %v", conn.ID, err)
		}
	}

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump drains client frames so control messages are processed, and
// unregisters the connection when the client goes away.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: WebSocket error: %v", err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// pingMessage is the only frame clients send.
type pingMessage struct {
	Type string `json:"type"`
}

func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var msg pingMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "ping" {
		return
	}
	_ = s.hub.SendJSONToConnection(conn, map[string]interface{}{
		"type": "pong",
		"ts":   time.Now().UnixMilli(),
	})
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
