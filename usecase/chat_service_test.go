package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/irp-helper/adapters/llm"
	"github.com/satriahrh/irp-helper/config"
	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/usecase"
)

type completerFunc func(ctx context.Context, history []domain.Turn) (string, error)

func (f completerFunc) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	return f(ctx, history)
}

type recordingBroker struct {
	mu     sync.Mutex
	events []domain.TurnEvent
}

func (b *recordingBroker) Publish(ctx context.Context, topic, routingKey string, message []byte) error {
	var ev domain.TurnEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return err
	}
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	return nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, topic, routingKey string) (<-chan domain.Message, error) {
	return nil, nil
}

func (b *recordingBroker) Close() error { return nil }

func configuredSession(t *testing.T, svc *usecase.ChatService) *usecase.Session {
	t.Helper()
	sess := svc.NewSession("s1")
	require.NoError(t, sess.Onboarding.SetName("Ada"))
	require.NoError(t, sess.Onboarding.SelectGender(domain.GenderFemale))
	require.NoError(t, sess.Onboarding.StartChat())
	return sess
}

// geminiSession wires a session to the REST backend pointed at handler.
func geminiSession(t *testing.T, apiKey string, handler http.HandlerFunc) (*usecase.Session, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	completer := llm.NewGeminiREST(config.GeminiConfig{
		APIKey:  apiKey,
		Model:   "gemini-test",
		BaseURL: srv.URL,
	}, srv.Client())
	return configuredSession(t, usecase.NewChatService(completer)), &calls
}

func TestSubmitBlankDraftIsNoOp(t *testing.T) {
	called := false
	sess := configuredSession(t, usecase.NewChatService(completerFunc(func(context.Context, []domain.Turn) (string, error) {
		called = true
		return "", nil
	})))

	for _, draft := range []string{"", "   ", "\n\t"} {
		sess.SetDraft(draft)
		_, err := sess.Submit(context.Background())
		assert.ErrorIs(t, err, usecase.ErrEmptyDraft)
		assert.Empty(t, sess.Transcript())
		assert.Equal(t, draft, sess.Draft())
	}
	assert.False(t, called)
}

func TestSubmitAppendsUserTurnBeforeNetwork(t *testing.T) {
	var sess *usecase.Session
	sess = configuredSession(t, usecase.NewChatService(completerFunc(func(ctx context.Context, history []domain.Turn) (string, error) {
		assert.Equal(t, []domain.Turn{domain.UserTurn("hi there")}, sess.Transcript())
		assert.Equal(t, []domain.Turn{domain.UserTurn("hi there")}, history)
		assert.Empty(t, sess.Draft())
		assert.Equal(t, usecase.StateSending, sess.State())
		return "hello", nil
	})))

	sess.SetDraft("hi there")
	bot, err := sess.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.BotTurn("hello"), bot)
	assert.Equal(t, usecase.StateIdle, sess.State())
	assert.Equal(t, []domain.Turn{domain.UserTurn("hi there"), domain.BotTurn("hello")}, sess.Transcript())
}

func TestSubmitReplaysWholeTranscript(t *testing.T) {
	var seen [][]domain.Turn
	sess := configuredSession(t, usecase.NewChatService(completerFunc(func(ctx context.Context, history []domain.Turn) (string, error) {
		seen = append(seen, history)
		return "reply", nil
	})))

	_, err := sess.SendMessage(context.Background(), "one")
	require.NoError(t, err)
	_, err = sess.SendMessage(context.Background(), "two")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, []domain.Turn{
		domain.UserTurn("one"), domain.BotTurn("reply"), domain.UserTurn("two"),
	}, seen[1])
}

func TestSubmitWithoutCredential(t *testing.T) {
	sess, calls := geminiSession(t, domain.PlaceholderCredential, func(w http.ResponseWriter, r *http.Request) {})

	_, err := sess.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []domain.Turn{
		domain.UserTurn("hello"),
		domain.BotTurn("Please add your Gemini API key to use this component."),
	}, sess.Transcript())
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	assert.Equal(t, usecase.StateIdle, sess.State())
}

func TestSubmitGeminiOutcomes(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"success":        {http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Hello!"}]}}]}`, "Hello!"},
		"remote error":   {http.StatusBadRequest, `{"error":{"message":"bad key"}}`, "Error: bad key"},
		"no message":     {http.StatusBadGateway, `{"error":{}}`, "Error: An unknown error occurred."},
		"empty object":   {http.StatusInternalServerError, `{}`, "Error: An unknown error occurred."},
		"html error":     {http.StatusBadGateway, `<html>Bad Gateway</html>`, usecase.ConnectivityReply},
		"unexpected":     {http.StatusOK, `{"candidates":[]}`, usecase.UnexpectedResponseReply},
		"malformed json": {http.StatusOK, `{"candidates":[`, usecase.ConnectivityReply},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sess, calls := geminiSession(t, "real-key", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			bot, err := sess.SendMessage(context.Background(), "hi")
			require.NoError(t, err)
			assert.Equal(t, tc.want, bot.Text)
			transcript := sess.Transcript()
			require.Len(t, transcript, 2)
			assert.Equal(t, domain.BotTurn(tc.want), transcript[1])
			assert.Equal(t, int32(1), atomic.LoadInt32(calls))
		})
	}
}

func TestSubmitNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	completer := llm.NewGeminiREST(config.GeminiConfig{APIKey: "real-key", Model: "m", BaseURL: base}, nil)
	sess := configuredSession(t, usecase.NewChatService(completer))

	_, err := sess.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	transcript := sess.Transcript()
	assert.Equal(t, domain.BotTurn("Sorry, something went wrong while connecting to the API."), transcript[len(transcript)-1])
}

func TestSubmitRequiresOnboarding(t *testing.T) {
	svc := usecase.NewChatService(completerFunc(func(context.Context, []domain.Turn) (string, error) {
		return "x", nil
	}))
	sess := svc.NewSession("s1")

	_, err := sess.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, usecase.ErrNotConfigured)
	assert.Empty(t, sess.Transcript())
}

// blockingCompleter holds every call until release is closed.
func blockingCompleter(started chan<- string, release <-chan struct{}) domain.Completer {
	return completerFunc(func(ctx context.Context, history []domain.Turn) (string, error) {
		last := history[len(history)-1].Text
		started <- last
		<-release
		return "re: " + last, nil
	})
}

func TestSubmitWhileSendingIsRejected(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	sess := configuredSession(t, usecase.NewChatService(blockingCompleter(started, release)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.SendMessage(context.Background(), "first")
	}()
	<-started

	_, err := sess.SendMessage(context.Background(), "second")
	assert.ErrorIs(t, err, usecase.ErrBusy)
	assert.Equal(t, "second", sess.Draft(), "a rejected draft is kept")
	assert.Len(t, sess.Transcript(), 1)

	close(release)
	<-done
	assert.Equal(t, []domain.Turn{domain.UserTurn("first"), domain.BotTurn("re: first")}, sess.Transcript())
}

func TestOverlappingSendsWhenAllowed(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	sess := configuredSession(t, usecase.NewChatService(
		blockingCompleter(started, release),
		usecase.WithOverlappingSends(true),
	))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.SendMessage(context.Background(), "first")
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.SendMessage(context.Background(), "second")
	}()
	<-started
	assert.Equal(t, usecase.StateSending, sess.State())

	close(release)
	wg.Wait()

	transcript := sess.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, domain.UserTurn("first"), transcript[0])
	assert.Equal(t, domain.UserTurn("second"), transcript[1])
	assert.ElementsMatch(t, []domain.Turn{domain.BotTurn("re: first"), domain.BotTurn("re: second")}, transcript[2:])
	assert.Equal(t, usecase.StateIdle, sess.State())
}

func TestSubmitPublishesEvents(t *testing.T) {
	broker := &recordingBroker{}
	sess := configuredSession(t, usecase.NewChatService(
		completerFunc(func(context.Context, []domain.Turn) (string, error) { return "ok", nil }),
		usecase.WithBroker(broker),
	))

	_, err := sess.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	require.Len(t, broker.events, 4)
	assert.Equal(t, domain.TurnEventType, broker.events[0].Type)
	assert.Equal(t, domain.UserSender, broker.events[0].Sender)
	assert.Equal(t, 0, broker.events[0].Index)
	assert.Equal(t, domain.StateEventType, broker.events[1].Type)
	assert.True(t, broker.events[1].Sending)
	assert.Equal(t, domain.BotSender, broker.events[2].Sender)
	assert.Equal(t, "ok", broker.events[2].Text)
	assert.Equal(t, 1, broker.events[2].Index)
	assert.False(t, broker.events[3].Sending)
	for _, ev := range broker.events {
		assert.Equal(t, "s1", ev.SessionID)
		assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)
	}
}
