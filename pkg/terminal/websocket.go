package terminal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/session"
	"github.com/antibyte/retrobasic/pkg/shared"

	"github.com/gorilla/websocket"
)

// WebSocket-Konfigurationswerte, siehe [Network] Sektion in settings.cfg

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 64) * 1024)
}

// Client ist ein verbundenes Terminal
type Client struct {
	conn      *websocket.Conn
	session   *session.Session
	ipAddress string
	validator *InputValidator

	// replies generated by the client itself, e.g. rejected input
	local    chan shared.Message
	shutdown chan struct{}
	once     sync.Once
}

func newClient(conn *websocket.Conn, sess *session.Session, ipAddress string) *Client {
	return &Client{
		conn:      conn,
		session:   sess,
		ipAddress: ipAddress,
		validator: NewInputValidator(),
		local:     make(chan shared.Message, 16),
		shutdown:  make(chan struct{}),
	}
}

// close stops the write pump. The session is released once the pump has
// stopped reading its output.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.shutdown)
	})
}

func (c *Client) reply(msg shared.Message) {
	select {
	case c.local <- msg:
	default:
		logger.WebSocketWarn("dropping reply for %s, buffer full", c.ipAddress)
	}
}

// readPump liest Anfragen vom Browser und leitet sie an die Session weiter
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("unexpected close for %s: %v", c.ipAddress, err)
			} else {
				logger.WebSocketDebug("connection closed for %s: %v", c.ipAddress, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		req, err := c.validator.DecodeRequest(message)
		if err != nil {
			logger.WebSocketWarn("rejected message from %s: %v", c.ipAddress, err)
			c.reply(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
			continue
		}
		c.handleRequest(req)
	}
}

func (c *Client) handleRequest(req *ClientRequest) {
	switch req.Type {
	case RequestBreak:
		c.session.Break()
	case RequestInput:
		if err := c.session.Submit(req.Content); err != nil {
			logger.WebSocketWarn("session %s: %v", c.session.ID, err)
			c.reply(shared.Message{Type: shared.MessageTypeError, Content: err.Error()})
		}
	case RequestKeepalive:
	}
}

// writeMessage serialisiert eine Nachricht und schreibt sie mit Deadline
func (c *Client) writeMessage(msg shared.Message) error {
	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
	return c.conn.WriteMessage(websocket.TextMessage, jsonBytes)
}

// writePump überträgt Session-Ausgaben und Pings zum Browser
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.session.Detach()
		logger.WebSocketInfo("terminal %s detached from session %s", c.ipAddress, c.session.ID)
	}()

	for {
		select {
		case msg := <-c.session.Output():
			if err := c.writeMessage(msg); err != nil {
				logger.WebSocketDebug("write to %s failed: %v", c.ipAddress, err)
				return
			}
		case msg := <-c.local:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketError("failed to send ping to %s: %v", c.ipAddress, err)
				return
			}
		case <-c.session.Done():
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return
		case <-c.shutdown:
			return
		}
	}
}
