package usecase

import (
	"errors"
	"strings"
	"sync"

	"github.com/satriahrh/irp-helper/domain"
)

var (
	// ErrIncompleteProfile is returned by StartChat until both a name and a
	// gender are given; OnboardingPrompt is the text to show the user.
	ErrIncompleteProfile = errors.New("name and gender are required")
	// ErrAlreadyConfigured is returned when editing the form after StartChat.
	ErrAlreadyConfigured = errors.New("onboarding already completed")
)

// Onboarding is the gate in front of the chat. Once StartChat succeeds it is
// permanently open and the profile is frozen.
type Onboarding struct {
	mu         sync.RWMutex
	name       string
	gender     domain.Gender
	configured bool
}

func (o *Onboarding) SetName(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.configured {
		return ErrAlreadyConfigured
	}
	o.name = name
	return nil
}

func (o *Onboarding) SelectGender(g domain.Gender) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.configured {
		return ErrAlreadyConfigured
	}
	o.gender = g
	return nil
}

// StartChat opens the gate. It changes nothing when the form is incomplete,
// and is a no-op once the gate is open.
func (o *Onboarding) StartChat() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.configured {
		return nil
	}
	if strings.TrimSpace(o.name) == "" || o.gender == domain.GenderUnset {
		return ErrIncompleteProfile
	}
	o.configured = true
	return nil
}

func (o *Onboarding) Configured() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.configured
}

func (o *Onboarding) Profile() domain.Profile {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return domain.Profile{Name: strings.TrimSpace(o.name), Gender: o.gender}
}
