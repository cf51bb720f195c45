package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/adapters/typewriter"
	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/usecase"
	"github.com/satriahrh/irp-helper/utils/log"
)

// SessionResolver returns the chat session a request belongs to.
type SessionResolver func(c echo.Context) (*usecase.Session, error)

type Server struct {
	upgrader websocket.Upgrader
	resolve  SessionResolver
	broker   domain.MessageBroker
	hub      *Hub
	speed    time.Duration
	clock    typewriter.Clock
}

type Option func(*Server)

// WithTypewriterSpeed sets the per-character delay of reveal frames.
func WithTypewriterSpeed(d time.Duration) Option {
	return func(s *Server) { s.speed = d }
}

func WithClock(c typewriter.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func NewServer(resolve SessionResolver, broker domain.MessageBroker, opts ...Option) *Server {
	server := &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		resolve:  resolve,
		broker:   broker,
		hub:      NewHub(),
		speed:    typewriter.DefaultSpeed,
		clock:    typewriter.RealClock(),
	}
	for _, opt := range opts {
		opt(server)
	}
	return server
}

func (s *Server) RunWebsocketHub() {
	s.hub.Run()
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// forwardTurns relays the session's turn events to client until the
// connection closes, starting a reveal for every bot turn. Turns below
// replayed were already sent in full.
func (s *Server) forwardTurns(client *Client, events <-chan domain.Message, replayed int) {
	ctx := client.Context()
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			var ev domain.TurnEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.WithCtx(ctx).Error("Failed to unmarshal turn event", zap.Error(err))
				continue
			}
			if ev.Type == domain.TurnEventType && ev.Index < replayed {
				continue
			}
			if err := client.SendMessage(msg.Payload); err != nil {
				log.WithCtx(ctx).Warn("Failed to forward turn event", zap.Error(err))
				continue
			}
			if ev.Type == domain.TurnEventType && ev.Sender == domain.BotSender {
				client.Reveal(ev.Index, ev.Text, typewriter.WithSpeed(s.speed), typewriter.WithClock(s.clock))
			}

		case <-ctx.Done():
			return
		}
	}
}

// handleInbound runs one widget message. Sends outlive the connection so a
// reply is never lost from the transcript.
func (s *Server) handleInbound(client *Client, sess *usecase.Session, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type != "message" {
		client.SendJSON(ErrorResponse{Type: "error", Code: "bad_request", Message: "expected {\"type\":\"message\",\"text\":...}"})
		return
	}

	ctx := context.WithoutCancel(client.Context())
	go func() {
		_, err := sess.SendMessage(ctx, in.Text)
		switch {
		case err == nil:
		case errors.Is(err, usecase.ErrEmptyDraft):
			client.SendJSON(ErrorResponse{Type: "error", Code: "empty", Message: "message text is empty"})
		case errors.Is(err, usecase.ErrBusy):
			client.SendJSON(ErrorResponse{Type: "error", Code: "busy", Message: "please wait for the current reply"})
		default:
			log.WithCtx(ctx).Error("Failed to send message", zap.Error(err))
			client.SendJSON(ErrorResponse{Type: "error", Code: "internal", Message: err.Error()})
		}
	}()
}
