package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/irp-helper/domain"
)

func TestStartChatRequiresNameAndGender(t *testing.T) {
	cases := []struct {
		name   string
		gender domain.Gender
	}{
		{"", domain.GenderFemale},
		{"   ", domain.GenderMale},
		{"Ada", domain.GenderUnset},
		{"", domain.GenderUnset},
	}
	for _, tc := range cases {
		var o Onboarding
		require.NoError(t, o.SetName(tc.name))
		require.NoError(t, o.SelectGender(tc.gender))

		assert.ErrorIs(t, o.StartChat(), ErrIncompleteProfile)
		assert.False(t, o.Configured())
	}
}

func TestStartChatOpensGateOnce(t *testing.T) {
	var o Onboarding
	require.NoError(t, o.SetName("  Ada "))
	require.NoError(t, o.SelectGender(domain.GenderOther))

	require.NoError(t, o.StartChat())
	assert.True(t, o.Configured())
	assert.Equal(t, domain.Profile{Name: "Ada", Gender: domain.GenderOther}, o.Profile())

	assert.NoError(t, o.StartChat())
	assert.True(t, o.Configured())
	assert.ErrorIs(t, o.SetName("Grace"), ErrAlreadyConfigured)
	assert.ErrorIs(t, o.SelectGender(domain.GenderMale), ErrAlreadyConfigured)
	assert.Equal(t, "Ada", o.Profile().Name)
}

func TestReplyForError(t *testing.T) {
	assert.Equal(t, MissingCredentialReply, replyForError(domain.ErrMissingCredential))
	assert.Equal(t, "Error: bad key", replyForError(&domain.RemoteError{StatusCode: 400, Message: "bad key"}))
	assert.Equal(t, "Error: An unknown error occurred.", replyForError(&domain.RemoteError{StatusCode: 500}))
	assert.Equal(t, UnexpectedResponseReply, replyForError(domain.ErrUnexpectedResponse))
	assert.Equal(t, ConnectivityReply, replyForError(domain.ErrTransport))
}
