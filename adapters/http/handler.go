package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/usecase"
	"github.com/satriahrh/irp-helper/utils/log"
)

const sessionContextKey = "chat_session"

type ChatHandler struct {
	sessions    *usecase.SessionStore
	tokens      *TokenIssuer
	synthesizer domain.Synthesizer
	transcriber domain.Transcriber
	connections func() int
	credential  bool
}

type Option func(*ChatHandler)

// WithSynthesizer enables the read-aloud endpoint.
func WithSynthesizer(s domain.Synthesizer) Option {
	return func(h *ChatHandler) { h.synthesizer = s }
}

// WithTranscriber enables the voice input endpoint.
func WithTranscriber(t domain.Transcriber) Option {
	return func(h *ChatHandler) { h.transcriber = t }
}

// WithConnectionCounter reports open websocket connections in the health check.
func WithConnectionCounter(f func() int) Option {
	return func(h *ChatHandler) { h.connections = f }
}

// WithCredentialStatus reports whether the Gemini key is set in the health check.
func WithCredentialStatus(configured bool) Option {
	return func(h *ChatHandler) { h.credential = configured }
}

func NewChatHandler(sessions *usecase.SessionStore, tokens *TokenIssuer, opts ...Option) *ChatHandler {
	h := &ChatHandler{sessions: sessions, tokens: tokens}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type CreateSessionRequest struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

type CreateSessionResponse struct {
	SessionID string         `json:"session_id"`
	Token     string         `json:"token"`
	Profile   domain.Profile `json:"profile"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type SendMessageResponse struct {
	Reply      domain.Turn   `json:"reply"`
	Transcript []domain.Turn `json:"transcript"`
	Heard      string        `json:"heard,omitempty"`
}

type TranscriptResponse struct {
	Transcript []domain.Turn `json:"transcript"`
	State      string        `json:"state"`
}

// Register mounts the REST API on e.
func (h *ChatHandler) Register(e *echo.Echo) {
	e.GET("/", h.Widget)

	api := e.Group("/api/v1")
	api.GET("/health", h.HealthCheck)
	api.POST("/sessions", h.CreateSession)

	chat := api.Group("/chat")
	chat.Use(h.SessionMiddleware)
	chat.GET("/messages", h.ListMessages)
	chat.POST("/messages", h.PostMessage)
	chat.GET("/messages/:index/audio", h.MessageAudio)
	chat.POST("/voice", h.PostVoice)
}

// CreateSession runs the onboarding gate and hands out the session token.
func (h *ChatHandler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	profile := domain.Profile{Name: req.Name}
	if strings.TrimSpace(req.Gender) != "" {
		gender, err := domain.ParseGender(req.Gender)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, usecase.OnboardingPrompt)
		}
		profile.Gender = gender
	}

	sess, err := h.sessions.Open(profile)
	if errors.Is(err, usecase.ErrIncompleteProfile) {
		return echo.NewHTTPError(http.StatusBadRequest, usecase.OnboardingPrompt)
	}
	if err != nil {
		return err
	}

	token, err := h.tokens.Issue(sess.ID)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Error signing session token", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	log.WithCtx(log.WithSession(c.Request().Context(), sess.ID)).Info("Chat session started")
	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		Profile:   sess.Onboarding.Profile(),
	})
}

// SessionMiddleware resolves the session from "Authorization: Bearer <token>"
// or, for websocket upgrades, the token query parameter.
func (h *ChatHandler) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := h.resolve(c)
		if err != nil {
			return err
		}
		c.Set(sessionContextKey, sess)
		return next(c)
	}
}

// SessionFrom returns the session stored by SessionMiddleware, resolving it
// from the request when the middleware did not run.
func (h *ChatHandler) SessionFrom(c echo.Context) (*usecase.Session, error) {
	if sess, ok := c.Get(sessionContextKey).(*usecase.Session); ok {
		return sess, nil
	}
	return h.resolve(c)
}

func (h *ChatHandler) resolve(c echo.Context) (*usecase.Session, error) {
	tokenString := c.QueryParam("token")
	if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}
	}
	if tokenString == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing session token")
	}

	sessionID, err := h.tokens.Parse(tokenString)
	if err != nil {
		log.WithCtx(c.Request().Context()).Debug("Session token rejected", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid session token")
	}
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	return sess, nil
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	sess, err := h.SessionFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TranscriptResponse{
		Transcript: sess.Transcript(),
		State:      sess.State().String(),
	})
}

func (h *ChatHandler) PostMessage(c echo.Context) error {
	sess, err := h.SessionFrom(c)
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// A dropped request must not cut the reply out of the transcript.
	ctx := context.WithoutCancel(log.WithSurface(log.WithSession(c.Request().Context(), sess.ID), "web"))
	reply, err := sess.SendMessage(ctx, req.Text)
	if err != nil {
		return sendError(err)
	}
	return c.JSON(http.StatusOK, SendMessageResponse{Reply: reply, Transcript: sess.Transcript()})
}

// MessageAudio reads the bot turn at :index aloud.
func (h *ChatHandler) MessageAudio(c echo.Context) error {
	if h.synthesizer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Read-aloud is not enabled")
	}
	sess, err := h.SessionFrom(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message index")
	}
	turn, ok := sess.Turn(index)
	if !ok || turn.Sender != domain.BotSender {
		return echo.NewHTTPError(http.StatusNotFound, "No bot message at that index")
	}

	ctx := log.WithSession(c.Request().Context(), sess.ID)
	audio, err := h.synthesizer.Synthesize(ctx, turn.Text)
	if err != nil {
		log.WithCtx(ctx).Error("Failed to synthesize reply", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to synthesize audio")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// PostVoice transcribes the request body and submits it as the draft.
func (h *ChatHandler) PostVoice(c echo.Context) error {
	if h.transcriber == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Voice input is not enabled")
	}
	sess, err := h.SessionFrom(c)
	if err != nil {
		return err
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, echo.MIMEOctetStream) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid content type. Expected audio/* or application/octet-stream")
	}
	audio, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read audio")
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty audio")
	}

	ctx := log.WithSurface(log.WithSession(c.Request().Context(), sess.ID), "voice")
	heard, err := h.transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.WithCtx(ctx).Error("Failed to transcribe audio", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to transcribe audio")
	}

	reply, err := sess.SendMessage(context.WithoutCancel(ctx), heard)
	if err != nil {
		return sendError(err)
	}
	return c.JSON(http.StatusOK, SendMessageResponse{Reply: reply, Transcript: sess.Transcript(), Heard: heard})
}

func sendError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrEmptyDraft):
		return echo.NewHTTPError(http.StatusBadRequest, "Message text is empty")
	case errors.Is(err, usecase.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "A reply is still being generated")
	case errors.Is(err, usecase.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusForbidden, usecase.OnboardingPrompt)
	default:
		return err
	}
}

func (h *ChatHandler) HealthCheck(c echo.Context) error {
	body := map[string]interface{}{
		"status":                "healthy",
		"timestamp":             time.Now().UTC(),
		"service":               "irp-helper",
		"sessions":              h.sessions.Len(),
		"credential_configured": h.credential,
	}
	if h.connections != nil {
		body["connections"] = h.connections()
	}
	return c.JSON(http.StatusOK, body)
}
