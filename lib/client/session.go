package client

import (
	"context"
	"time"

	"github.com/stagegate/stagegate-go/lib/result"
)

type peekRet struct {
	Peeked *PeekedToken `json:"peeked"`
	Denied *bool        `json:"denied"`
}

// CheckToken verifies and rotates a session token in one step. The passed
// token is consumed either way; on success the PeekedToken's NewToken is
// the only live credential. Failures are opaque on purpose.
func (c *Client) CheckToken(ctx context.Context, token *Token) (result.Result[PeekedToken, Opaque], error) {
	var zero result.Result[PeekedToken, Opaque]

	ret, err := c.callRaw(ctx, routeRefresh, token.takeEncoded())
	if err != nil {
		return zero, err
	}
	var payload peekRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlot(payload.Peeked, payload.Denied)
	if err != nil {
		return zero, err
	}
	return result.MapErr(r, func(bool) Opaque { return Opaque{} }), nil
}

type revokeFailed struct {
	NewToken *Token `json:"new_token"`
}

type revokeRet struct {
	Failed *revokeFailed `json:"revoke_failed"`
}

// RevokeTokens invalidates every session of the token's user. On success
// no token comes back: all sessions are dead. On failure the error may
// carry a replacement token which must be used for a retry.
func (c *Client) RevokeTokens(ctx context.Context, token *Token) (result.Result[result.Unit, *Token], error) {
	var zero result.Result[result.Unit, *Token]

	ret, err := c.callRaw(ctx, routeRevoke, token.takeEncoded())
	if err != nil {
		return zero, err
	}
	var payload revokeRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	if payload.Failed != nil {
		return result.Err[result.Unit, *Token](payload.Failed.NewToken), nil
	}
	return result.Ok[result.Unit, *Token](result.Unit{}), nil
}

// IsHealthy probes the provider's health route under the supplied
// timeout.
func (c *Client) IsHealthy(ctx context.Context, timeout time.Duration) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.healthy(probeCtx)
}

// CheckTokenAsync is CheckToken as a Future.
func (c *Client) CheckTokenAsync(ctx context.Context, token *Token) *result.Future[PeekedToken, Opaque] {
	return result.Go(func() (result.Result[PeekedToken, Opaque], error) {
		return c.CheckToken(ctx, token)
	})
}

// RevokeTokensAsync is RevokeTokens as a Future.
func (c *Client) RevokeTokensAsync(ctx context.Context, token *Token) *result.Future[result.Unit, *Token] {
	return result.Go(func() (result.Result[result.Unit, *Token], error) {
		return c.RevokeTokens(ctx, token)
	})
}

// IsHealthyAsync is IsHealthy as a Future; the err side carries the probe
// failure.
func (c *Client) IsHealthyAsync(ctx context.Context, timeout time.Duration) *result.Future[bool, error] {
	return result.Go(func() (result.Result[bool, error], error) {
		healthy, err := c.IsHealthy(ctx, timeout)
		if err != nil {
			return result.Err[bool, error](err), nil
		}
		return result.Ok[bool, error](healthy), nil
	})
}
