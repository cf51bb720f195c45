package domain

import (
	"context"
	"errors"
	"fmt"
)

// Completer abstracts the remote completion endpoint. It receives the whole
// transcript, oldest first, and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, history []Turn) (string, error)
}

// PlaceholderCredential is the value shipped in configuration before a real
// key is supplied.
const PlaceholderCredential = "YOUR_GEMINI_API_KEY"

// CredentialConfigured reports whether key can be sent to the endpoint.
func CredentialConfigured(key string) bool {
	return key != "" && key != PlaceholderCredential
}

var (
	// ErrMissingCredential means no request was made because the key is unset.
	ErrMissingCredential = errors.New("gemini api key is not configured")
	// ErrUnexpectedResponse means a 2xx response had no candidate text.
	ErrUnexpectedResponse = errors.New("unexpected response format")
	// ErrTransport covers network failures and unreadable success bodies.
	ErrTransport = errors.New("transport failure")
)

// RemoteError is a non-2xx answer from the endpoint. Message is empty when the
// body carried no readable error message.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote rejected request with status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote rejected request with status %d: %s", e.StatusCode, e.Message)
}

// Hasher fingerprints secrets so they can be logged without being revealed.
type Hasher interface {
	Hash(data []byte) string
}
