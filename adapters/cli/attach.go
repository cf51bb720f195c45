package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chathttp "github.com/satriahrh/irp-helper/adapters/http"
	"github.com/satriahrh/irp-helper/adapters/terminal"
	chatws "github.com/satriahrh/irp-helper/adapters/websocket"
	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
)

func newAttachCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Chat through a running server over its websocket channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Quiet()

			rl, err := terminal.NewReadline()
			if err != nil {
				return err
			}
			defer rl.Close()
			console := terminal.NewConsole(rl, os.Stdout)

			token, err := openRemoteSession(cmd.Context(), console, server)
			if errors.Is(err, terminal.ErrQuit) {
				return nil
			}
			if err != nil {
				return err
			}
			return attach(cmd.Context(), console, server, token)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of a running irp-helper serve")
	return cmd
}

// openRemoteSession onboards against the server until it hands out a token.
func openRemoteSession(ctx context.Context, console *terminal.Console, server string) (string, error) {
	for {
		profile, err := console.AskProfile()
		if err != nil {
			return "", err
		}
		body, err := json.Marshal(chathttp.CreateSessionRequest{Name: profile.Name, Gender: string(profile.Gender)})
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/v1/sessions", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("creating session: %w", err)
		}
		var created chathttp.CreateSessionResponse
		var failure struct {
			Message string `json:"message"`
		}
		switch resp.StatusCode {
		case http.StatusCreated:
			err = json.NewDecoder(resp.Body).Decode(&created)
		case http.StatusBadRequest:
			_ = json.NewDecoder(resp.Body).Decode(&failure)
		default:
			err = fmt.Errorf("creating session: server returned %s", resp.Status)
		}
		resp.Body.Close()
		if err != nil {
			return "", err
		}
		if resp.StatusCode == http.StatusBadRequest {
			console.Println(failure.Message)
			continue
		}
		return created.Token, nil
	}
}

// serverFrame is the union of everything the websocket channel pushes.
type serverFrame struct {
	Type    string        `json:"type"`
	Index   int           `json:"index"`
	Sender  domain.Sender `json:"sender"`
	Text    string        `json:"text"`
	Visible string        `json:"visible"`
	Done    bool          `json:"done"`
	Message string        `json:"message"`
}

func wsURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func attach(ctx context.Context, console *terminal.Console, server, token string) error {
	target, err := wsURL(server, token)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", server, err)
	}
	defer conn.Close()

	r := newRenderer(console)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
					log.WithCtx(ctx).Error("Error reading message", zap.Error(err))
				}
				return
			}
			var fr serverFrame
			if err := json.Unmarshal(raw, &fr); err != nil {
				continue
			}
			r.render(fr)
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		line, err := console.ReadMessage()
		if errors.Is(err, terminal.ErrQuit) {
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		r.sent.Store(true)
		if err := conn.WriteJSON(map[string]string{"type": "message", "text": line}); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	wg.Wait()
	return nil
}

// renderer turns reveal frames into console output, printing only what each
// frame adds.
type renderer struct {
	console *terminal.Console
	mu      sync.Mutex
	shown   map[int]string
	// sent is set once this client has sent a message; user turns before it
	// are replayed history and get echoed.
	sent atomic.Bool
}

func newRenderer(console *terminal.Console) *renderer {
	return &renderer{console: console, shown: make(map[int]string)}
}

func (r *renderer) render(fr serverFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch fr.Type {
	case domain.TurnEventType:
		if fr.Sender == domain.UserSender && !r.sent.Load() {
			r.console.Println("you> " + fr.Text)
		}
	case "reveal":
		prev, started := r.shown[fr.Index]
		if !started {
			r.console.BeginReply()
		}
		delta, reset := revealDelta(prev, fr.Visible)
		if reset {
			r.console.Println()
			r.console.BeginReply()
		}
		r.console.WriteDelta(delta)
		r.shown[fr.Index] = fr.Visible
		if fr.Done {
			r.console.Println()
		}
	case "error":
		r.console.Println("error: " + fr.Message)
	case chatws.NoticeShutdown:
		r.console.Println(fr.Message)
	}
}

// revealDelta returns what visible adds to prev. reset is true when visible
// no longer extends prev and must be shown from the start.
func revealDelta(prev, visible string) (delta string, reset bool) {
	if strings.HasPrefix(visible, prev) {
		return visible[len(prev):], false
	}
	return visible, true
}
