package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/utils/log"
)

// Notice is a frame addressed to every open connection instead of one
// session.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

const NoticeShutdown = "shutdown"

func ShutdownNotice() Notice {
	return Notice{Type: NoticeShutdown, Message: "server is shutting down"}
}

// Hub tracks the open connections of the process. Session traffic goes
// through the broker; the hub only counts connections and announces notices.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the register/unregister loop.
func (h *Hub) Run() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.WithCtx(client.Context()).Debug("Connection attached")

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			h.mu.Unlock()
			if ok {
				client.Close()
				log.WithCtx(client.Context()).Debug("Connection detached")
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister forgets client and closes it.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues n on every open connection and returns how many accepted
// it.
func (h *Hub) Broadcast(n Notice) int {
	payload, err := json.Marshal(n)
	if err != nil {
		log.With().Error("Failed to marshal notice", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for client := range h.clients {
		if err := client.SendMessage(payload); err != nil {
			log.WithCtx(client.Context()).Debug("Notice not delivered", zap.String("type", n.Type), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
