package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"

	"github.com/stagegate/stagegate-go/lib/client/types"
)

func loginOk(kinds ...string) map[string]any {
	return map[string]any{"ret": map[string]any{"hello_login": kinds}, "permit": "p-1"}
}

func TestLoginHappyPath(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).JSON(loginOk("Totp"))
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"token": encodedToken("session-1")}})

	ctx := context.Background()

	start, err := c.Login().Start(ctx, "bob123", mustPassword(t, "Password1234!"))
	require.NoError(t, err)
	initMfa := start.Unwrap()
	assert.Equal(t, []types.MfaKind{types.MfaTotp}, initMfa.Available())

	challenge, err := initMfa.Totp(ctx)
	require.NoError(t, err)
	verify := challenge.Unwrap()

	outcome, err := verify.Guess(ctx, mustTotp(t, "12345678"))
	require.NoError(t, err)
	token := outcome.Unwrap()
	assert.Equal(t, encodedToken("session-1"), token.Export())
	assert.True(t, gock.IsDone())
}

func TestLoginWrongTotpThenRight(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).JSON(loginOk("Totp"))
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	// Wrong guess: back to RetryInitMfa under a fresh permit.
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"maybe_retry": []string{"Totp"}}, "permit": "p-3"})
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-4"})
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"token": encodedToken("session-2")}})

	ctx := context.Background()

	start, err := c.Login().Start(ctx, "bob123", mustPassword(t, "Password1234!"))
	require.NoError(t, err)
	challenge, err := start.Unwrap().Totp(ctx)
	require.NoError(t, err)

	outcome, err := challenge.Unwrap().Guess(ctx, mustTotp(t, "00000000"))
	require.NoError(t, err)
	require.True(t, outcome.IsErr(), "wrong guess is a flow-level failure")

	retry := outcome.UnwrapErr()
	assert.Equal(t, []types.MfaKind{types.MfaTotp}, retry.Available())

	second, err := retry.Totp(ctx)
	require.NoError(t, err)
	outcome, err = second.Unwrap().Guess(ctx, mustTotp(t, "12345678"))
	require.NoError(t, err)
	assert.Equal(t, encodedToken("session-2"), outcome.Unwrap().Export())
	assert.True(t, gock.IsDone())
}

func TestLoginIngressFailure(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"failure": "IncorrectPassword"}})

	r, err := c.Login().Start(context.Background(), "bob123", mustPassword(t, "Password9999!"))
	require.NoError(t, err)
	assert.Equal(t, LoginIncorrectPassword, r.UnwrapErr())
}

func TestLoginUnavailableKindFailsLocally(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).JSON(loginOk("Totp"))

	ctx := context.Background()
	start, err := c.Login().Start(ctx, "bob123", mustPassword(t, "Password1234!"))
	require.NoError(t, err)
	initMfa := start.Unwrap()

	// SMS is not in the available set: no round trip, same state back.
	r, err := initMfa.Sms(ctx)
	require.NoError(t, err)
	require.True(t, r.IsErr())
	assert.Same(t, initMfa, r.UnwrapErr(), "guard returns the unchanged state")
	assert.True(t, gock.IsDone(), "no request was made for the refused kind")

	// The state is still usable with an available kind.
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	challenge, err := initMfa.Totp(ctx)
	require.NoError(t, err)
	assert.True(t, challenge.IsOk())
}

func TestLoginSmsChallenge(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).JSON(loginOk("Sms", "Email"))
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	gock.New(testBase).Post("/login").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"token": encodedToken("session-3")}})

	ctx := context.Background()
	start, err := c.Login().Start(ctx, "bob123", mustPassword(t, "Password1234!"))
	require.NoError(t, err)

	challenge, err := start.Unwrap().Sms(ctx)
	require.NoError(t, err)
	verify := challenge.Unwrap()
	assert.Equal(t, types.MfaSms, verify.Kind())

	outcome, err := verify.Guess(ctx, mustOtp(t, "123456"))
	require.NoError(t, err)
	assert.True(t, outcome.IsOk())
}
