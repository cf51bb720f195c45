package usecase

import (
	"errors"

	"github.com/satriahrh/irp-helper/domain"
)

// Bot turn texts for every way a send can end without a model reply.
const (
	MissingCredentialReply  = "Please add your Gemini API key to use this component."
	UnexpectedResponseReply = "Sorry, I received an unexpected response from the API."
	ConnectivityReply       = "Sorry, something went wrong while connecting to the API."
	UnknownRemoteError      = "An unknown error occurred."
)

// OnboardingPrompt is shown when the onboarding form is submitted incomplete.
const OnboardingPrompt = "Please enter your name and select a gender."

// replyForError maps a completion failure to the bot turn shown in its place.
func replyForError(err error) string {
	var remote *domain.RemoteError
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return MissingCredentialReply
	case errors.As(err, &remote):
		msg := remote.Message
		if msg == "" {
			msg = UnknownRemoteError
		}
		return "Error: " + msg
	case errors.Is(err, domain.ErrUnexpectedResponse):
		return UnexpectedResponseReply
	default:
		return ConnectivityReply
	}
}
