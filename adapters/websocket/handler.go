package websocket

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
)

// Handler upgrades "/ws" for the session resolved from the request. Turns
// already in the transcript are replayed fully revealed.
func (s *Server) Handler(c echo.Context) error {
	sess, err := s.resolve(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var client *Client
	client = NewClient(conn, sess.ID, func(raw []byte) {
		s.handleInbound(client, sess, raw)
	})

	events, err := s.broker.Subscribe(client.Context(), domain.TurnTopic, sess.ID)
	if err != nil {
		client.Close()
		return err
	}

	s.hub.Register(client)
	defer s.hub.Unregister(client)
	client.Run()

	transcript := sess.Transcript()
	if dropped := s.replay(client, sess.ID, transcript); dropped > 0 {
		log.WithCtx(client.Context()).Warn("Transcript replay incomplete", zap.Int("dropped", dropped))
	}

	go s.forwardTurns(client, events, len(transcript))

	log.WithCtx(client.Context()).Debug("WebSocket session attached")
	<-client.Context().Done()

	return nil
}

// replay sends turns already in the transcript, bot turns fully revealed.
// It returns the number of frames dropped on a full send buffer.
func (s *Server) replay(client *Client, sessionID string, transcript []domain.Turn) int {
	dropped := 0
	send := func(v any) {
		if err := client.SendJSON(v); err != nil {
			dropped++
			log.WithCtx(client.Context()).Debug("Dropping replayed frame", zap.Error(err))
		}
	}
	for i, turn := range transcript {
		send(domain.TurnEvent{
			Type:      domain.TurnEventType,
			SessionID: sessionID,
			Index:     i,
			Sender:    turn.Sender,
			Text:      turn.Text,
		})
		if turn.Sender == domain.BotSender {
			send(RevealFrame{Type: "reveal", Index: i, Visible: turn.Text, Done: true})
		}
	}
	return dropped
}
