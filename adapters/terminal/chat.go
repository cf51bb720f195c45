package terminal

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/usecase"
	"github.com/satriahrh/irp-helper/utils/log"
)

// SessionOpener runs the onboarding gate for a profile.
type SessionOpener interface {
	Open(profile domain.Profile) (*usecase.Session, error)
}

// Onboard asks for a profile until the gate opens.
func (c *Console) Onboard(sessions SessionOpener) (*usecase.Session, error) {
	for {
		profile, err := c.AskProfile()
		if err != nil {
			return nil, err
		}
		sess, err := sessions.Open(profile)
		if errors.Is(err, usecase.ErrIncompleteProfile) {
			c.Println(usecase.OnboardingPrompt)
			continue
		}
		if err != nil {
			return nil, err
		}
		c.Println("Hi " + sess.Onboarding.Profile().Name + ", ask me anything. Ctrl+C to quit.")
		return sess, nil
	}
}

// Chat sends every line read to sess and reveals each reply. It returns nil
// when the user quits.
func (c *Console) Chat(ctx context.Context, sess *usecase.Session) error {
	ctx = log.WithSurface(log.WithSession(ctx, sess.ID), "terminal")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := c.ReadMessage()
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		hide := c.ShowTyping()
		reply, err := sess.SendMessage(ctx, line)
		hide()
		switch {
		case errors.Is(err, usecase.ErrEmptyDraft):
			continue
		case err != nil:
			log.WithCtx(ctx).Error("Failed to send message", zap.Error(err))
			return err
		}
		c.Reveal(ctx, reply.Text)
	}
}
