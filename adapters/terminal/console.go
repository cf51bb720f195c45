// Package terminal runs the onboarding gate and the chat loop on a console.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/readline"
	"golang.org/x/term"

	"github.com/satriahrh/irp-helper/adapters/typewriter"
	"github.com/satriahrh/irp-helper/domain"
)

const (
	chatPrompt      = "you> "
	botPrefix       = "bot> "
	typingIndicator = "bot is typing..."
)

// LineReader is the part of a readline instance the console needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type Console struct {
	in          LineReader
	out         io.Writer
	interactive bool
	speed       time.Duration
	clock       typewriter.Clock
}

type Option func(*Console)

// WithSpeed sets the per-character reveal delay on interactive consoles.
func WithSpeed(d time.Duration) Option {
	return func(c *Console) { c.speed = d }
}

func WithClock(clock typewriter.Clock) Option {
	return func(c *Console) { c.clock = clock }
}

// Interactive forces animated output on or off. It defaults to whether
// stdout is a terminal.
func Interactive(on bool) Option {
	return func(c *Console) { c.interactive = on }
}

func NewConsole(in LineReader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		in:          in,
		out:         out,
		interactive: IsTerminal(os.Stdout),
		speed:       typewriter.DefaultSpeed,
		clock:       typewriter.RealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewReadline opens a readline instance on the process terminal.
func NewReadline() (*readline.Instance, error) {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          chatPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("opening console: %w", err)
	}
	return rl, nil
}

func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ErrQuit is returned when the user leaves with Ctrl+C or Ctrl+D.
var ErrQuit = errors.New("console closed")

func (c *Console) readLine(prompt string) (string, error) {
	c.in.SetPrompt(prompt)
	line, err := c.in.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrQuit
	}
	return line, err
}

func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// AskProfile reads a name and a gender choice. It does not validate; an
// empty name or unknown choice comes back as an incomplete profile.
func (c *Console) AskProfile() (domain.Profile, error) {
	name, err := c.readLine("Name: ")
	if err != nil {
		return domain.Profile{}, err
	}

	for i, g := range domain.Genders {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, g)
	}
	choice, err := c.readLine(fmt.Sprintf("Gender [1-%d]: ", len(domain.Genders)))
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{Name: name, Gender: parseChoice(choice)}, nil
}

// parseChoice accepts a menu number or the option name.
func parseChoice(choice string) domain.Gender {
	choice = strings.TrimSpace(choice)
	if n, err := strconv.Atoi(choice); err == nil {
		if n >= 1 && n <= len(domain.Genders) {
			return domain.Genders[n-1]
		}
		return domain.GenderUnset
	}
	g, err := domain.ParseGender(choice)
	if err != nil {
		return domain.GenderUnset
	}
	return g
}

// ReadMessage reads the next chat line.
func (c *Console) ReadMessage() (string, error) {
	return c.readLine(chatPrompt)
}

// ShowTyping prints the typing indicator. The returned func erases it.
func (c *Console) ShowTyping() func() {
	if !c.interactive {
		return func() {}
	}
	fmt.Fprint(c.out, typingIndicator)
	return func() {
		fmt.Fprint(c.out, "\r"+strings.Repeat(" ", len(typingIndicator))+"\r")
	}
}

// Reveal writes text one character per tick and returns when it is fully
// shown or ctx is done. Non-interactive consoles get the text at once.
func (c *Console) Reveal(ctx context.Context, text string) {
	c.BeginReply()
	defer fmt.Fprintln(c.out)

	if !c.interactive {
		fmt.Fprint(c.out, text)
		return
	}

	done := make(chan struct{})
	tw := typewriter.New(text,
		typewriter.WithSpeed(c.speed),
		typewriter.WithClock(c.clock),
		typewriter.OnUpdate(func(f typewriter.Frame) {
			fmt.Fprint(c.out, f.Delta)
			if f.Done {
				close(done)
			}
		}),
	)
	tw.Start()

	select {
	case <-done:
	case <-ctx.Done():
		tw.Stop()
	}
}

// BeginReply prints the prefix of a bot reply.
func (c *Console) BeginReply() {
	fmt.Fprint(c.out, botPrefix)
}

// WriteDelta prints a chunk of a reveal streamed from elsewhere.
func (c *Console) WriteDelta(delta string) {
	fmt.Fprint(c.out, delta)
}
