// Package terminal connects browser terminals to interpreter sessions over
// WebSockets.
package terminal

import (
	"net/http"
	"strings"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/session"

	"github.com/gorilla/websocket"
)

// Handler verwaltet WebSocket-Verbindungen zu den Sessions
type Handler struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
}

// NewHandler creates a handler serving sessions from mgr.
func NewHandler(mgr *session.Manager) *Handler {
	return &Handler{
		sessions: mgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Authentifizierung läuft über das Token, nicht über Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket authenticates the token, attaches to its session and
// starts the read and write pumps.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ipAddress := clientIP(r)

	tokenString, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		logger.WebSocketWarn("connection from %s without token: %v", ipAddress, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateSessionToken(tokenString)
	if err != nil {
		logger.WebSocketWarn("invalid token from %s: %v", ipAddress, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sess, ok := h.sessions.Get(claims.SessionID)
	if !ok {
		logger.WebSocketWarn("unknown session %s from %s", claims.SessionID, ipAddress)
		http.Error(w, "Session expired", http.StatusGone)
		return
	}
	if err := sess.Attach(); err != nil {
		logger.WebSocketWarn("session %s: %v", sess.ID, err)
		http.Error(w, "Session in use", http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.Detach()
		logger.WebSocketError("upgrade failed for %s: %v", ipAddress, err)
		return
	}
	logger.WebSocketInfo("terminal %s attached to session %s", ipAddress, sess.ID)

	client := newClient(conn, sess, ipAddress)
	sess.Greet(h.sessions.Prompts())
	go client.writePump()
	client.readPump()
}

// clientIP extracts the client IP address from the request
func clientIP(r *http.Request) string {
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
