package statecache

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(keyring.NewArrayKeyring(nil))
}

func TestStateRoundTrip(t *testing.T) {
	s := newStore(t)

	blob := []byte(`{"stage":"InitMfa","permit":"p-1"}`)
	require.NoError(t, s.PutState("idp.example.com", "bob123", "login", blob))

	got, err := s.GetState("idp.example.com", "bob123", "login")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	// Different flow, username and host are distinct keys.
	_, err = s.GetState("idp.example.com", "bob123", "signup")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetState("idp.example.com", "alice", "login")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetState("other.example.com", "bob123", "login")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteState("idp.example.com", "bob123", "login"))
	_, err = s.GetState("idp.example.com", "bob123", "login")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRoundTrip(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.PutToken("idp.example.com", "bob123", "c2VhbGVk"))

	enc, err := s.GetToken("idp.example.com", "bob123")
	require.NoError(t, err)
	assert.Equal(t, "c2VhbGVk", enc)

	require.NoError(t, s.DeleteToken("idp.example.com", "bob123"))
	_, err = s.GetToken("idp.example.com", "bob123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingIsFine(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.DeleteState("h", "u", "login"))
	assert.NoError(t, s.DeleteToken("h", "u"))
}
