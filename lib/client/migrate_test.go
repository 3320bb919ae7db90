package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"

	"github.com/stagegate/stagegate-go/lib/client/types"
)

func TestMigrateLoginHappyPath(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"hello_mlogin": map[string]any{}}, "permit": "p-1"})
	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-3"})
	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"token": encodedToken("migrated")}})

	ctx := context.Background()

	start, err := c.MigrateLogin().Start(ctx, "legacy-user", mustPassword(t, "Password1234!"))
	require.NoError(t, err)
	setupMfa := start.Unwrap()

	verify, err := setupMfa.Sms(ctx, "+15550100")
	require.NoError(t, err)
	assert.Equal(t, types.MfaSms, verify.CurrentMfa())

	outcome, err := verify.Guess(ctx, mustOtp(t, "123456"))
	require.NoError(t, err)
	done := outcome.Unwrap()
	assert.Equal(t, []types.MfaKind{types.MfaSms}, done.AlreadySetup())

	token, err := done.Login(ctx)
	require.NoError(t, err)
	assert.Equal(t, encodedToken("migrated"), token.Export())
	assert.True(t, gock.IsDone())
}

func TestMigrateLoginWrongFlow(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"failure": "WrongFlow"}})

	r, err := c.MigrateLogin().Start(context.Background(), "modern-user", mustPassword(t, "Password1234!"))
	require.NoError(t, err)
	assert.Equal(t, LoginWrongFlow, r.UnwrapErr(),
		"an account with MFA already set up must use the normal login")
}

func TestMigrateTotpSetup(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"hello_mlogin": map[string]any{}}, "permit": "p-1"})
	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"setup_totp": "otpauth://totp/x"}, "permit": "p-2"})
	gock.New(testBase).Post("/mLogin").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"maybe_retry_totp": true}, "permit": "p-3"})

	ctx := context.Background()

	start, err := c.MigrateLogin().Start(ctx, "legacy-user", mustPassword(t, "Password1234!"))
	require.NoError(t, err)

	verify, err := start.Unwrap().Totp(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, verify.ProvisioningURI())

	outcome, err := verify.Guess(ctx, mustTotp(t, "00000000"))
	require.NoError(t, err)
	require.True(t, outcome.IsErr())
	assert.Empty(t, outcome.UnwrapErr().ProvisioningURI(), "retry shape carries no URI")
}
