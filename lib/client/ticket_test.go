package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"
)

func TestTicketIssue(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"issue_ticket": map[string]any{
			"ticket":    encodedToken("ticket-1"),
			"new_token": encodedToken("admin-rotated"),
		}}})

	admin := importToken(t, "admin-session")
	r, err := c.Ticket().Issue(context.Background(), admin, "bob123", TicketFull, "lost phone")
	require.NoError(t, err)

	issued := r.Unwrap()
	require.NotNil(t, issued.Ticket)
	require.NotNil(t, issued.NewToken, "the admin token rotates on issue")
	assert.Equal(t, encodedToken("admin-rotated"), issued.NewToken.Export())

	// The admin token was consumed by Issue.
	assert.Panics(t, func() { admin.Export() })
}

func TestTicketIssueDenied(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"denied": true}})

	r, err := c.Ticket().Issue(context.Background(), importToken(t, "peon-session"), "bob123", TicketFull, "nope")
	require.NoError(t, err)
	assert.True(t, r.IsErr(), "refusals carry no detail")
}

func TestTicketRedeemSendsTicketAsPermit(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/recover").
		JSON(map[string]any{
			"args":   map[string]any{"redeem": map[string]string{"operation": "ResetPassword"}},
			"permit": encodedToken("ticket-1"),
		}).
		Reply(200).
		JSON(map[string]any{"ret": map[string]any{"redeem": "ResetPassword"}, "permit": "p-1"})

	ticket, err := ImportTicket(encodedToken("ticket-1"))
	require.NoError(t, err)

	r, err := c.Ticket().Redeem(context.Background(), ticket, ResetPassword)
	require.NoError(t, err)
	verified := r.Unwrap()
	assert.Equal(t, ResetPassword, verified.Operation())
	assert.True(t, gock.IsDone(), "the ticket travelled as the envelope permit")

	// The ticket is single-use.
	assert.Panics(t, func() { ticket.Export() })
}

func TestTicketRedeemRefusals(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"failure": "InvalidOp"}})

	ticket, err := ImportTicket(encodedToken("mutual-ticket"))
	require.NoError(t, err)

	// A Mutual ticket cannot cover ResetAll; the provider refuses.
	r, err := c.Ticket().Redeem(context.Background(), ticket, ResetAll)
	require.NoError(t, err)
	assert.Equal(t, InvalidOp, r.UnwrapErr().Reason)

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"failure": "InvalidTicket"}})

	stale, err := ImportTicket(encodedToken("stale-ticket"))
	require.NoError(t, err)
	r, err = c.Ticket().Redeem(context.Background(), stale, ResetPassword)
	require.NoError(t, err)
	assert.Equal(t, InvalidTicket, r.UnwrapErr().Reason)
}

func TestTicketResetPasswordOnly(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)
	ctx := context.Background()

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"redeem": "ResetPassword"}, "permit": "p-1"})
	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"token": encodedToken("recovered")}})

	ticket, err := ImportTicket(encodedToken("ticket-1"))
	require.NoError(t, err)

	r, err := c.Ticket().Redeem(ctx, ticket, ResetPassword)
	require.NoError(t, err)

	step := r.Unwrap().Proceed()
	reset, ok := step.(*ResetPasswordStep)
	require.True(t, ok, "ResetPassword routes to the password step")

	outcome, err := reset.Set(ctx, mustPassword(t, "NewPassword99!"))
	require.NoError(t, err)
	require.Nil(t, outcome.SetupMfa)
	require.NotNil(t, outcome.Complete, "no MFA step for a password-only recovery")

	token, err := outcome.Complete.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, encodedToken("recovered"), token.Export())
	assert.True(t, gock.IsDone())
}

func TestTicketResetAll(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)
	ctx := context.Background()

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"redeem": "ResetAll"}, "permit": "p-1"})
	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-2"})
	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-3"})
	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{}, "permit": "p-4"})
	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"token": encodedToken("fully-recovered")}})

	ticket, err := ImportTicket(encodedToken("full-ticket"))
	require.NoError(t, err)

	r, err := c.Ticket().Redeem(ctx, ticket, ResetAll)
	require.NoError(t, err)

	reset, ok := r.Unwrap().Proceed().(*ResetPasswordStep)
	require.True(t, ok, "ResetAll starts with the password step")

	outcome, err := reset.Set(ctx, mustPassword(t, "NewPassword99!"))
	require.NoError(t, err)
	require.NotNil(t, outcome.SetupMfa, "ResetAll continues into MFA setup")
	require.Nil(t, outcome.Complete)

	verify, err := outcome.SetupMfa.Sms(ctx, "+15550100")
	require.NoError(t, err)

	afterVerify, err := verify.Guess(ctx, mustOtp(t, "123456"))
	require.NoError(t, err)

	token, err := afterVerify.Unwrap().Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, encodedToken("fully-recovered"), token.Export())
	assert.True(t, gock.IsDone())
}

func TestTicketResetMfaRoutesToSetup(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/recover").Reply(200).
		JSON(map[string]any{"ret": map[string]any{"redeem": "ResetMfa"}, "permit": "p-1"})

	ticket, err := ImportTicket(encodedToken("mfa-ticket"))
	require.NoError(t, err)

	r, err := c.Ticket().Redeem(context.Background(), ticket, ResetMfa)
	require.NoError(t, err)

	_, ok := r.Unwrap().Proceed().(*RecoverySetupMfa)
	assert.True(t, ok, "ResetMfa routes straight to MFA setup")
}
