package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/replaykit/replay/internal/scenario"
	"github.com/replaykit/replay/pkg/api"
	"github.com/replaykit/replay/pkg/log"
)

// Client is a WebSocket connection subscribed to execution events. It
// satisfies the scenario service's Subscriber contract; writes from
// broadcasts and the ping loop are serialized on one mutex
type Client struct {
	svc    *scenario.Service
	conn   *websocket.Conn
	done   func(*Client)
	writeM sync.Mutex
	subs   map[api.ExecutionID]struct{}
	open   atomic.Bool
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

const invalidMessageFormat = "Invalid message format"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", log.Error(err))
		return
	}

	client := &Client{
		svc:  s.exec,
		conn: conn,
		done: s.unregisterWebSocket,
		subs: map[api.ExecutionID]struct{}{},
	}
	client.open.Store(true)
	s.registerWebSocket(client)

	go client.run()
}

// Send delivers one encoded execution event to the client
func (c *Client) Send(data []byte) error {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// IsOpen reports whether the connection still accepts events
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// Close tears the connection down; the read loop unwinds the
// subscriptions
func (c *Client) Close() {
	c.open.Store(false)
	_ = c.conn.Close()
}

func (c *Client) run() {
	defer func() {
		c.open.Store(false)
		for id := range c.subs {
			c.svc.Unsubscribe(id, c)
		}
		if c.done != nil {
			c.done(c)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.sendEvent(&api.ExecutionEvent{
		Type:    api.MessageConnected,
		Message: "Connected to execution event stream",
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case message, ok := <-incoming:
			if !ok {
				return
			}
			c.handleMessage(message)

		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(incoming chan []byte) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			close(incoming)
			return
		}
		incoming <- message
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg api.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendEvent(&api.ExecutionEvent{
			Type:  api.MessageError,
			Error: invalidMessageFormat,
		})
		return
	}

	switch msg.Type {
	case api.MessageSubscribe:
		c.subscribe(msg.ExecutionID)
	case api.MessageUnsubscribe:
		c.unsubscribe(msg.ExecutionID)
	default:
		c.sendEvent(&api.ExecutionEvent{
			Type:  api.MessageError,
			Error: invalidMessageFormat,
		})
	}
}

func (c *Client) subscribe(id api.ExecutionID) {
	if !c.svc.Subscribe(id, c) {
		c.sendEvent(&api.ExecutionEvent{
			Type:        api.MessageError,
			ExecutionID: id,
			Error:       "No active execution: " + string(id),
		})
		return
	}
	c.subs[id] = struct{}{}
	c.sendEvent(&api.ExecutionEvent{
		Type:        api.MessageSubscribed,
		ExecutionID: id,
	})
}

func (c *Client) unsubscribe(id api.ExecutionID) {
	c.svc.Unsubscribe(id, c)
	delete(c.subs, id)
	c.sendEvent(&api.ExecutionEvent{
		Type:        api.MessageUnsubscribed,
		ExecutionID: id,
	})
}

func (c *Client) sendEvent(ev *api.ExecutionEvent) {
	if err := c.Send(ev.Encode()); err != nil {
		slog.Debug("WebSocket write failed", log.Error(err))
	}
}

func (c *Client) sendPing() bool {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}
