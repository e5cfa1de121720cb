package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/notify"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// upgrader keeps gorilla's default origin check: browsers may only open the
// stream from a page served by this host. Non-browser clients send no Origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// eventStream is one websocket subscriber of the notification broadcaster.
type eventStream struct {
	conn       *websocket.Conn
	remoteAddr string
	events     <-chan notify.Notification
	cancel     func()
}

// handleEvents upgrades the request and streams notifications as JSON
// text messages until either side goes away.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("WebSocket upgrade error",
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	events, cancel := s.broadcaster.Subscribe()
	es := &eventStream{
		conn:       conn,
		remoteAddr: c.Request.RemoteAddr,
		events:     events,
		cancel:     cancel,
	}
	logging.LogConnection(es.remoteAddr, "event_stream_opened")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		es.writePump()
	}()
	go func() {
		defer s.wg.Done()
		es.readPump()
	}()
}

// readPump discards client messages and notices when the peer closes.
func (es *eventStream) readPump() {
	defer func() {
		es.cancel()
		_ = es.conn.Close()
	}()

	es.conn.SetReadLimit(maxMessageSize)
	_ = es.conn.SetReadDeadline(time.Now().Add(pongWait))
	es.conn.SetPongHandler(func(string) error {
		return es.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := es.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Event stream read error",
					zap.String("remote_addr", es.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(es.remoteAddr, "received", msgType, data)
	}
}

// writePump forwards notifications and keeps the connection alive with pings.
func (es *eventStream) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		es.cancel()
		_ = es.conn.Close()
		logging.LogConnection(es.remoteAddr, "event_stream_closed")
	}()

	for {
		select {
		case n, ok := <-es.events:
			_ = es.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Unsubscribed: server shutdown or a slow consumer.
				_ = es.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := es.conn.WriteJSON(n); err != nil {
				return
			}

		case <-ticker.C:
			_ = es.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := es.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
