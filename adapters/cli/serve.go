package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	chathttp "github.com/satriahrh/irp-helper/adapters/http"
	"github.com/satriahrh/irp-helper/adapters/message_broker"
	"github.com/satriahrh/irp-helper/adapters/speech"
	"github.com/satriahrh/irp-helper/adapters/tts"
	"github.com/satriahrh/irp-helper/adapters/websocket"
	"github.com/satriahrh/irp-helper/config"
	"github.com/satriahrh/irp-helper/usecase"
	"github.com/satriahrh/irp-helper/utils/log"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat widget, its REST API and the websocket channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log.Configure(cfg.Debug)
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVER_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	completer, err := newCompleter(ctx, cfg.Gemini)
	if err != nil {
		return err
	}

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	svc := usecase.NewChatService(completer,
		usecase.WithBroker(broker),
		usecase.WithOverlappingSends(cfg.Chat.AllowOverlappingSends),
	)
	sessions := usecase.NewSessionStore(svc)

	tokens, err := chathttp.NewTokenIssuer(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}

	var server *websocket.Server
	opts := []chathttp.Option{
		chathttp.WithCredentialStatus(cfg.CredentialConfigured()),
		chathttp.WithConnectionCounter(func() int { return server.GetHub().ClientCount() }),
	}

	if cfg.Voice.TTSEnabled {
		googleTTS, err := tts.NewGoogleTTS(ctx, cfg.Voice.LanguageCode)
		if err != nil {
			return err
		}
		defer googleTTS.Close()
		opts = append(opts, chathttp.WithSynthesizer(googleTTS))
	}
	if cfg.Voice.SpeechEnabled {
		googleSpeech, err := speech.NewGoogleSpeech(ctx, cfg.Voice.LanguageCode, cfg.Voice.SampleRateHertz)
		if err != nil {
			return err
		}
		defer googleSpeech.Close()
		opts = append(opts, chathttp.WithTranscriber(googleSpeech))
	}

	handler := chathttp.NewChatHandler(sessions, tokens, opts...)
	server = websocket.NewServer(handler.SessionFrom, broker, websocket.WithTypewriterSpeed(cfg.Chat.TypewriterSpeed))
	server.RunWebsocketHub()

	e := newEcho(cfg.Server)
	handler.Register(e)
	e.GET("/ws", server.Handler)

	errCh := make(chan error, 1)
	go func() {
		log.With(zap.String("addr", cfg.Server.Addr)).Info("Starting server",
			zap.Strings("endpoints", []string{
				"GET  /                                 - Chat widget",
				"GET  /api/v1/health                    - Health check",
				"POST /api/v1/sessions                  - Start a chat session",
				"GET  /api/v1/chat/messages             - Transcript (token required)",
				"POST /api/v1/chat/messages             - Send a message (token required)",
				"GET  /api/v1/chat/messages/:index/audio - Read a reply aloud (token required)",
				"POST /api/v1/chat/voice                - Send a voice message (token required)",
				"GET  /ws                               - WebSocket (token required)",
			}))
		errCh <- e.Start(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	notified := server.GetHub().Broadcast(websocket.ShutdownNotice())
	log.With(zap.Int("connections", notified)).Info("Shutdown notice sent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newEcho(cfg config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		MaxAge: 86400,
	}))

	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	return e
}
