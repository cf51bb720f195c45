package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/irp-helper/adapters/terminal"
	chatws "github.com/satriahrh/irp-helper/adapters/websocket"
	"github.com/satriahrh/irp-helper/domain"
)

type noInput struct{}

func (noInput) Readline() (string, error) { return "", nil }
func (noInput) SetPrompt(string)          {}

func TestRevealDelta(t *testing.T) {
	delta, reset := revealDelta("He", "Hel")
	assert.Equal(t, "l", delta)
	assert.False(t, reset)

	delta, reset = revealDelta("Hello", "")
	assert.Equal(t, "", delta)
	assert.True(t, reset)

	delta, reset = revealDelta("", "")
	assert.Equal(t, "", delta)
	assert.False(t, reset)
}

func TestWsURL(t *testing.T) {
	got, err := wsURL("http://localhost:8080", "abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?token=abc", got)

	got, err = wsURL("https://chat.example.com/", "a.b")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws?token=a.b", got)
}

func TestRendererPrintsDeltas(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(terminal.NewConsole(noInput{}, &out, terminal.Interactive(false)))

	// A replayed exchange followed by a live one.
	r.render(serverFrame{Type: domain.TurnEventType, Index: 0, Sender: domain.UserSender, Text: "earlier"})
	r.render(serverFrame{Type: domain.TurnEventType, Index: 1, Sender: domain.BotSender, Text: "old"})
	r.render(serverFrame{Type: "reveal", Index: 1, Visible: "old", Done: true})

	r.sent.Store(true)
	r.render(serverFrame{Type: domain.TurnEventType, Index: 2, Sender: domain.UserSender, Text: "Hi"})
	r.render(serverFrame{Type: domain.StateEventType, Index: 2})
	r.render(serverFrame{Type: "reveal", Index: 3, Visible: "H"})
	r.render(serverFrame{Type: "reveal", Index: 3, Visible: "He"})
	r.render(serverFrame{Type: "reveal", Index: 3, Visible: "Hey", Done: true})
	r.render(serverFrame{Type: "error", Message: "please wait for the current reply"})
	r.render(serverFrame{Type: chatws.NoticeShutdown, Message: chatws.ShutdownNotice().Message})

	assert.Equal(t, "you> earlier\nbot> old\nbot> Hey\nerror: please wait for the current reply\nserver is shutting down\n", out.String())
}
