package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"

	"github.com/stagegate/stagegate-go/lib/base64ct"
	"github.com/stagegate/stagegate-go/lib/client/types"
)

const testBase = "https://idp.test:8443"

func newTestClient(t *testing.T, opts *Options) *Client {
	t.Helper()
	c, err := NewClient("idp.test", 8443, opts)
	require.NoError(t, err, "NewClient")
	gock.InterceptClient(&c.client)
	return c
}

func mustPassword(t *testing.T, s string) types.Password {
	t.Helper()
	p, err := types.ParsePassword(s)
	require.NoError(t, err)
	return p
}

func mustOtp(t *testing.T, s string) types.SimpleOtp {
	t.Helper()
	o, err := types.ParseSimpleOtp(s)
	require.NoError(t, err)
	return o
}

func mustTotp(t *testing.T, s string) types.Totp {
	t.Helper()
	o, err := types.ParseTotp(s)
	require.NoError(t, err)
	return o
}

func encodedToken(s string) string {
	return base64ct.Encode([]byte(s))
}

func importToken(t *testing.T, s string) *Token {
	t.Helper()
	tok, err := ImportToken(encodedToken(s))
	require.NoError(t, err)
	return tok
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("idp.example.com", 443, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com:443", c.BaseURL().String())
}

func TestStatusTaxonomy(t *testing.T) {
	defer gock.Off()

	cases := []struct {
		status int
		kind   error
	}{
		{401, ErrState},
		{412, ErrPrecondition},
		{400, ErrRequest},
		{500, ErrInternal},
		{418, ErrUnexpectedStatus},
	}

	for _, tc := range cases {
		c := newTestClient(t, nil)
		gock.New(testBase).Post("/login").Reply(tc.status)

		_, err := c.Login().Start(context.Background(), "bob123", mustPassword(t, "Password1234!"))
		require.Error(t, err, "status %d", tc.status)
		assert.ErrorIs(t, err, tc.kind, "status %d maps to its kind", tc.status)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, tc.status, reqErr.Status)
	}
}

func TestDeserializationFailure(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).BodyString("not json")

	_, err := c.Login().Start(context.Background(), "bob123", mustPassword(t, "Password1234!"))
	assert.ErrorIs(t, err, ErrDeserialization)
}

func TestBothSlotsIsDeserialization(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	gock.New(testBase).Post("/login").Reply(200).JSON(map[string]any{
		"ret":    map[string]any{"hello_login": []string{"Totp"}, "failure": "IncorrectPassword"},
		"permit": "p-1",
	})

	_, err := c.Login().Start(context.Background(), "bob123", mustPassword(t, "Password1234!"))
	assert.ErrorIs(t, err, ErrDeserialization)
}

func TestEnvelopeShape(t *testing.T) {
	defer gock.Off()
	c := newTestClient(t, nil)

	// Ingress requests carry a null permit and the tagged args object.
	gock.New(testBase).
		Post("/login").
		MatchHeader("Content-Type", "application/json").
		MatchHeader("X-Request-Id", ".+").
		JSON(map[string]any{
			"args":   map[string]any{"hello_login": map[string]string{"username": "bob123", "password": "Password1234!"}},
			"permit": nil,
		}).
		Reply(200).
		JSON(map[string]any{"ret": map[string]any{"hello_login": []string{"Totp"}}, "permit": "p-1"})

	r, err := c.Login().Start(context.Background(), "bob123", mustPassword(t, "Password1234!"))
	require.NoError(t, err)
	assert.True(t, r.IsOk())
	assert.True(t, gock.IsDone(), "request matched the expected envelope")
}

func TestIsHealthy(t *testing.T) {
	defer gock.Off()

	c := newTestClient(t, nil)
	gock.New(testBase).Get("/health").Reply(200)

	healthy, err := c.IsHealthy(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.True(t, healthy)

	c2 := newTestClient(t, nil)
	gock.New(testBase).Get("/health").Reply(503)

	healthy, err = c2.IsHealthy(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.False(t, healthy)
}
