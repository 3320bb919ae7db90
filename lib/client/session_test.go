package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"
)

func TestCheckTokenRotates(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)
	ctx := context.Background()

	// The raw sealed token is the whole request body.
	gock.New(testBase).Post("/refresh").
		MatchHeader("Content-Type", "application/octet-stream").
		BodyString(encodedToken("session-1")).Reply(200).
		JSON(map[string]any{"ret": map[string]any{"peeked": map[string]any{
			"user_id":   "u-1",
			"new_token": encodedToken("session-2"),
		}}})

	token := importToken(t, "session-1")
	r, err := c.CheckToken(ctx, token)
	require.NoError(t, err)

	peeked := r.Unwrap()
	assert.Equal(t, "u-1", peeked.UserID)
	assert.True(t, gock.IsDone())

	// The checked token is dead client-side.
	assert.Panics(t, func() { token.Export() })

	// The replacement behaves exactly as the original did.
	gock.New(testBase).Post("/refresh").
		MatchHeader("Content-Type", "application/octet-stream").
		BodyString(encodedToken("session-2")).Reply(200).
		JSON(map[string]any{"ret": map[string]any{"peeked": map[string]any{
			"user_id":   "u-1",
			"new_token": encodedToken("session-3"),
		}}})

	r, err = c.CheckToken(ctx, peeked.NewToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", r.Unwrap().UserID)
	assert.True(t, gock.IsDone())
}

func TestCheckTokenOpaqueRefusal(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/refresh").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"denied": true}})

	r, err := c.CheckToken(context.Background(), importToken(t, "stale"))
	require.NoError(t, err)
	assert.True(t, r.IsErr(), "refusals carry no detail")
}

func TestRevokeTokens(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)
	ctx := context.Background()

	gock.New(testBase).Post("/revoke").
		MatchHeader("Content-Type", "application/octet-stream").
		BodyString(encodedToken("session-1")).Reply(200).
		JSON(map[string]any{"ret": map[string]any{}})

	r, err := c.RevokeTokens(ctx, importToken(t, "session-1"))
	require.NoError(t, err)
	assert.True(t, r.IsOk(), "all sessions are dead; no token comes back")

	// Failure branch: a replacement token rides in the error.
	gock.New(testBase).Post("/revoke").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"revoke_failed": map[string]any{
			"new_token": encodedToken("session-2"),
		}}})

	r, err = c.RevokeTokens(ctx, importToken(t, "session-1"))
	require.NoError(t, err)
	require.True(t, r.IsErr())
	replacement := r.UnwrapErr()
	require.NotNil(t, replacement, "the caller must retry with the replacement")
	assert.Equal(t, encodedToken("session-2"), replacement.Export())

	// Failure without a replacement is also legal.
	gock.New(testBase).Post("/revoke").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"revoke_failed": map[string]any{}}})

	r, err = c.RevokeTokens(ctx, importToken(t, "session-3"))
	require.NoError(t, err)
	require.True(t, r.IsErr())
	assert.Nil(t, r.UnwrapErr())
}

func TestCheckTokenAsync(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/refresh").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"peeked": map[string]any{
			"user_id":   "u-9",
			"new_token": encodedToken("async-next"),
		}}})

	fut := c.CheckTokenAsync(context.Background(), importToken(t, "async-token"))
	r, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-9", r.Unwrap().UserID)
}

func TestRevokeTokensAsync(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/revoke").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}})

	fut := c.RevokeTokensAsync(context.Background(), importToken(t, "bye"))
	r, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, r.IsOk())
}

func TestIsHealthyAsync(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Get("/health").Reply(200)

	fut := c.IsHealthyAsync(context.Background(), 2*time.Second)
	r, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Unwrap())
}
