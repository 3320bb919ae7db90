package client

import (
	"context"
	"encoding/json"

	"github.com/stagegate/stagegate-go/lib/client/types"
)

// The signup, migrate-login, MFA-update and ticket flows all negotiate
// MFA enrollment the same way: pick a kind (TOTP yields a provisioning
// URI, SMS and email take a contact address), then prove control of it
// with a guessed code, looping on failure. mfaSetup is that shared
// surface; each flow instantiates it with its own route and wire key and
// wraps the outcomes in its own state types.

// mfaSelector is the tagged kind union: {"Totp": null}, {"Sms": <phone>}
// or {"Email": <address>}.
type mfaSelector struct {
	kind    types.MfaKind
	contact string
}

func (s mfaSelector) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case types.MfaSms:
		return json.Marshal(map[string]string{"Sms": s.contact})
	case types.MfaEmail:
		return json.Marshal(map[string]string{"Email": s.contact})
	default:
		return []byte(`{"Totp":null}`), nil
	}
}

type setupMfaArgs struct {
	Kind mfaSelector `json:"kind"`
}

type setupTotpRet struct {
	ProvisioningURI *string `json:"setup_totp"`
}

type mfaSetup struct {
	c       *Client
	route   string
	wireKey string
	permit  string
}

// totp asks the provider to stage a TOTP enrollment and returns the
// provisioning URI to render as a QR code.
func (m mfaSetup) totp(ctx context.Context) (uri, nextPermit string, err error) {
	args := map[string]setupMfaArgs{m.wireKey: {Kind: mfaSelector{kind: types.MfaTotp}}}
	ret, permit, err := m.c.call(ctx, m.route, args, &m.permit)
	if err != nil {
		return "", "", err
	}
	var payload setupTotpRet
	if err := decodeRet(ret, &payload); err != nil {
		return "", "", err
	}
	r, err := okSlot(payload.ProvisioningURI)
	if err != nil {
		return "", "", err
	}
	return r.Unwrap(), permit, nil
}

// otp asks the provider to stage an SMS or email enrollment; the provider
// sends the code to the supplied contact.
func (m mfaSetup) otp(ctx context.Context, kind types.MfaKind, contact string) (nextPermit string, err error) {
	args := map[string]setupMfaArgs{m.wireKey: {Kind: mfaSelector{kind: kind, contact: contact}}}
	_, permit, err := m.c.call(ctx, m.route, args, &m.permit)
	if err != nil {
		return "", err
	}
	return permit, nil
}

type guessArgs struct {
	Guess string `json:"guess"`
}

type verifySimpleRet struct {
	MaybeRetry *bool `json:"maybe_retry_simple"`
}

type verifyTotpRet struct {
	MaybeRetry *bool `json:"maybe_retry_totp"`
}

// verifySimple submits a six-digit enrollment guess. retry reports a
// wrong guess; the returned permit belongs to whichever state comes next.
func (m mfaSetup) verifySimple(ctx context.Context, guess types.SimpleOtp) (retry bool, nextPermit string, err error) {
	args := map[string]guessArgs{"verify_simple_otp": {Guess: guess.Raw()}}
	ret, permit, err := m.c.call(ctx, m.route, args, &m.permit)
	if err != nil {
		return false, "", err
	}
	var payload verifySimpleRet
	if err := decodeRet(ret, &payload); err != nil {
		return false, "", err
	}
	r := errSlot(payload.MaybeRetry)
	return r.IsErr(), permit, nil
}

// verifyTotp submits an eight-digit enrollment guess.
func (m mfaSetup) verifyTotp(ctx context.Context, guess types.Totp) (retry bool, nextPermit string, err error) {
	args := map[string]guessArgs{"verify_totp": {Guess: guess.Raw()}}
	ret, permit, err := m.c.call(ctx, m.route, args, &m.permit)
	if err != nil {
		return false, "", err
	}
	var payload verifyTotpRet
	if err := decodeRet(ret, &payload); err != nil {
		return false, "", err
	}
	r := errSlot(payload.MaybeRetry)
	return r.IsErr(), permit, nil
}
