package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/adapters/typewriter"
	"github.com/satriahrh/irp-helper/utils/log"
)

var ErrSendBufferFull = errors.New("websocket send buffer is full")

type Client struct {
	conn         *websocket.Conn
	sessionID    string
	send         chan []byte
	incomingPing chan string
	onMessage    func([]byte)
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	closed       bool
	// reveals holds one typewriter per bot turn index shown on this
	// connection.
	reveals map[int]*typewriter.Typewriter
}

// Inbound is what the widget sends.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RevealFrame is pushed for every typewriter tick of a bot turn.
type RevealFrame struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Visible string `json:"visible"`
	Done    bool   `json:"done"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// NewClient wraps conn for one session. onMessage receives every inbound text
// frame on the read goroutine.
func NewClient(conn *websocket.Conn, sessionID string, onMessage func([]byte)) *Client {
	ctx := log.WithSession(context.Background(), sessionID)
	ctx = log.WithSurface(ctx, "ws")
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:         conn,
		sessionID:    sessionID,
		send:         make(chan []byte, 256),
		incomingPing: make(chan string, 1),
		onMessage:    onMessage,
		ctx:          ctx,
		cancel:       cancel,
		reveals:      make(map[int]*typewriter.Typewriter),
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	go c.Ping()
	go c.readPump()
	go c.writePump()
}

// setupHandlers configures all WebSocket control handlers
func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPingHandler(func(appData string) error {
		log.WithCtx(c.ctx).Debug("Received ping from client", zap.String("appData", appData))
		select {
		case c.incomingPing <- appData:
		default:
		}
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	c.conn.SetPongHandler(func(appData string) error {
		log.WithCtx(c.ctx).Debug("Received pong from client", zap.String("appData", appData))
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close tears the connection down and stops every reveal it owns.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	for _, tw := range c.reveals {
		tw.Stop()
	}
	c.conn.Close()
	close(c.send)
}

// IsClosed returns true if the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context is cancelled when the connection closes.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// Reveal starts the typewriter for the bot turn at index, streaming a
// RevealFrame per character. An index already revealing is reset to text.
func (c *Client) Reveal(index int, text string, opts ...typewriter.Option) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if tw, ok := c.reveals[index]; ok {
		c.mu.Unlock()
		tw.SetText(text)
		return
	}
	opts = append(opts, typewriter.OnUpdate(func(f typewriter.Frame) {
		if err := c.SendJSON(RevealFrame{Type: "reveal", Index: index, Visible: f.Visible, Done: f.Done}); err != nil {
			log.WithCtx(c.ctx).Debug("Dropping reveal frame", zap.Int("index", index), zap.Error(err))
		}
	}))
	tw := typewriter.New(text, opts...)
	c.reveals[index] = tw
	c.mu.Unlock()

	tw.Start()
}

func (c *Client) Ping() {
	for {
		select {
		case <-c.incomingPing:
		case <-time.After(pingPeriod):
			if c.IsClosed() {
				log.WithCtx(c.ctx).Debug("Connection closed, stopping ping routine")
				return
			}

			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Error("Failed to send ping", zap.Error(err))
				c.Close()
				return
			}
			log.WithCtx(c.ctx).Debug("Ping sent")
		case <-c.ctx.Done():
			log.WithCtx(c.ctx).Debug("Context cancelled, stopping ping routine")
			return
		}
	}
}

// readPump handles incoming WebSocket messages
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		if c.IsClosed() {
			return
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		log.WithCtx(c.ctx).Debug("Received message", zap.Int("size", len(message)))
		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

// writePump handles outgoing WebSocket messages
func (c *Client) writePump() {
	defer c.Close()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage queues message without blocking.
func (c *Client) SendMessage(message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendMessage(payload)
}
