package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
)

var (
	ErrEmptyDraft    = errors.New("draft is empty")
	ErrBusy          = errors.New("a message is already being sent")
	ErrNotConfigured = errors.New("onboarding not completed")
)

type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

// ChatService creates sessions bound to one completion backend.
type ChatService struct {
	llm          domain.Completer
	broker       domain.MessageBroker
	allowOverlap bool
	now          func() time.Time
}

type Option func(*ChatService)

// WithBroker publishes every transcript and state change on domain.TurnTopic.
func WithBroker(b domain.MessageBroker) Option {
	return func(s *ChatService) { s.broker = b }
}

// WithOverlappingSends lets a session submit while a request is in flight.
// Replies are then appended in completion order.
func WithOverlappingSends(allow bool) Option {
	return func(s *ChatService) { s.allowOverlap = allow }
}

func NewChatService(gen domain.Completer, opts ...Option) *ChatService {
	s := &ChatService{llm: gen, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession returns an unconfigured session behind its own onboarding gate.
func (s *ChatService) NewSession(id string) *Session {
	return &Session{ID: id, svc: s}
}

// Session is one user's conversation. The transcript only grows.
type Session struct {
	ID         string
	Onboarding Onboarding

	svc        *ChatService
	mu         sync.Mutex
	transcript []domain.Turn
	draft      string
	inFlight   int
}

func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) Transcript() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Turn returns the turn at index.
func (s *Session) Turn(index int) (domain.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.transcript) {
		return domain.Turn{}, false
	}
	return s.transcript[index], true
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		return StateSending
	}
	return StateIdle
}

// SendMessage replaces the draft with text and submits it.
func (s *Session) SendMessage(ctx context.Context, text string) (domain.Turn, error) {
	if !s.Onboarding.Configured() {
		return domain.Turn{}, ErrNotConfigured
	}
	s.SetDraft(text)
	return s.Submit(ctx)
}

// Submit sends the current draft. The user turn is appended and the draft
// cleared before the completion call starts; the call always ends with one
// bot turn, whose value is returned. A blank draft changes nothing.
func (s *Session) Submit(ctx context.Context) (domain.Turn, error) {
	if !s.Onboarding.Configured() {
		return domain.Turn{}, ErrNotConfigured
	}
	ctx = log.WithSession(ctx, s.ID)

	s.mu.Lock()
	if strings.TrimSpace(s.draft) == "" {
		s.mu.Unlock()
		return domain.Turn{}, ErrEmptyDraft
	}
	if s.inFlight > 0 && !s.svc.allowOverlap {
		s.mu.Unlock()
		return domain.Turn{}, ErrBusy
	}
	user := domain.UserTurn(s.draft)
	s.transcript = append(s.transcript, user)
	userIndex := len(s.transcript) - 1
	history := make([]domain.Turn, len(s.transcript))
	copy(history, s.transcript)
	s.draft = ""
	s.inFlight++
	s.mu.Unlock()

	s.publishTurn(ctx, userIndex, user)
	s.publishState(ctx, userIndex, true)

	text, err := s.svc.llm.Complete(ctx, history)
	if err != nil {
		log.WithCtx(ctx).Warn("Completion failed", zap.Error(err))
		text = replyForError(err)
	}
	bot := domain.BotTurn(text)

	s.mu.Lock()
	s.transcript = append(s.transcript, bot)
	botIndex := len(s.transcript) - 1
	s.inFlight--
	sending := s.inFlight > 0
	s.mu.Unlock()

	s.publishTurn(ctx, botIndex, bot)
	s.publishState(ctx, botIndex, sending)
	return bot, nil
}

func (s *Session) publishTurn(ctx context.Context, index int, turn domain.Turn) {
	s.publish(ctx, domain.TurnEvent{
		Type:   domain.TurnEventType,
		Index:  index,
		Sender: turn.Sender,
		Text:   turn.Text,
	})
}

// publishState reports the in-flight flag; index is the newest turn.
func (s *Session) publishState(ctx context.Context, index int, sending bool) {
	s.publish(ctx, domain.TurnEvent{Type: domain.StateEventType, Index: index, Sending: sending})
}

func (s *Session) publish(ctx context.Context, ev domain.TurnEvent) {
	if s.svc.broker == nil {
		return
	}
	ev.SessionID = s.ID
	ev.Timestamp = s.svc.now()
	payload, err := json.Marshal(ev)
	if err != nil {
		log.WithCtx(ctx).Error("Failed to marshal turn event", zap.Error(err))
		return
	}
	if err := s.svc.broker.Publish(ctx, domain.TurnTopic, s.ID, payload); err != nil {
		log.WithCtx(ctx).Warn("Failed to publish turn event", zap.Error(err))
	}
}
