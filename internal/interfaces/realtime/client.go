package realtime

import (
	"encoding/json"
	"sync"
	"time"

	convsvc "campus-market/internal/application/conversations"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// frame is what the gateway writes to the socket.
type frame struct {
	Type    string               `json:"type"`
	Message *convsvc.MessageView `json:"message,omitempty"`
}

// client pumps one conversation stream into one websocket. The socket is
// receive-only for the browser; inbound frames are read only for pongs and close.
type client struct {
	conn        *websocket.Conn
	stream      <-chan convsvc.MessageView
	unsubscribe func()
	log         zerolog.Logger
	stop        chan struct{}
	once        sync.Once
	onClose     func(*client)
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.stop)
		c.unsubscribe()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

func (c *client) write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.close()
	}()

	if !c.send(websocket.TextMessage, mustJSON(frame{Type: "subscribed"})) {
		return
	}
	for {
		select {
		case m, ok := <-c.stream:
			if !ok {
				c.send(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			b, err := json.Marshal(frame{Type: "message", Message: &m})
			if err != nil {
				c.log.Error().Err(err).Msg("realtime: encode failed")
				continue
			}
			if !c.send(websocket.TextMessage, b) {
				return
			}
		case <-c.stop:
			c.send(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.send(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *client) read() {
	defer func() {
		c.conn.Close()
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("realtime: read failed")
			}
			return
		}
	}
}

func (c *client) send(msgType int, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("realtime: write failed")
		}
		return false
	}
	return true
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
