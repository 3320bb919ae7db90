package client

import (
	"context"

	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/lib/result"
)

// The MFA-update flow re-authenticates the user with an existing method,
// negotiates a removal or a replacement, and only mutates the account at
// the Finalize step. Everything before Finalize is pure verification, so
// an abandoned flow leaves the MFA configuration untouched.

// CannotRemoveReason identifies why an MFA removal was refused.
type CannotRemoveReason string

const (
	// RemoveIsOnlyMfaKind: removing the last configured method would lock
	// the account out.
	RemoveIsOnlyMfaKind CannotRemoveReason = "IsOnlyMfaKind"

	// RemoveNotSetUp: the requested kind is not configured.
	RemoveNotSetUp CannotRemoveReason = "NotSetUp"

	// RemoveUpstream: the provider refused the removal.
	RemoveUpstream CannotRemoveReason = "Upstream"
)

// CannotRemoveMfa is the expected failure of a removal request.
type CannotRemoveMfa struct {
	Reason CannotRemoveReason
	Detail string
}

// UpdateMfaFailure is an expected finalization failure. NewToken keeps
// the user logged in and must be used for every subsequent request.
type UpdateMfaFailure struct {
	NewToken *Token
}

// UpdateMfaFlow is the ingress handle for MFA reconfiguration.
type UpdateMfaFlow struct {
	c *Client
}

// UpdateMfa starts a new MFA-update flow.
func (c *Client) UpdateMfa() *UpdateMfaFlow {
	return &UpdateMfaFlow{c: c}
}

// HelloUpdate pairs the first flow state with the rotated session token.
// NewToken replaces the token consumed by Hello; discarding it logs the
// user out.
type HelloUpdate struct {
	State    *StartUpdate
	NewToken *Token
}

type helloUpdateArgs struct {
	Token string `json:"token"`
}

type helloUpdateOk struct {
	NewToken *Token          `json:"new_token"`
	OldMfa   []types.MfaKind `json:"old_mfa"`
}

type helloUpdateRet struct {
	Ok     *helloUpdateOk `json:"hello_update"`
	Denied *bool          `json:"denied"`
}

// Hello opens the flow, consuming the session token and returning its
// replacement alongside the first state.
func (f *UpdateMfaFlow) Hello(ctx context.Context, token *Token) (result.Result[HelloUpdate, Opaque], error) {
	var zero result.Result[HelloUpdate, Opaque]

	args := map[string]helloUpdateArgs{"hello_update": {Token: token.takeEncoded()}}
	ret, permit, err := f.c.call(ctx, routeUpMfa, args, nil)
	if err != nil {
		return zero, err
	}
	var payload helloUpdateRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlot(payload.Ok, payload.Denied)
	if err != nil {
		return zero, err
	}
	return result.MapErr(result.Map(r, func(ok helloUpdateOk) HelloUpdate {
		return HelloUpdate{
			State:    &StartUpdate{c: f.c, permit: permit, oldMfa: ok.OldMfa},
			NewToken: ok.NewToken,
		}
	}), func(bool) Opaque { return Opaque{} }), nil
}

// StartUpdate re-authenticates the user with one of the account's
// existing MFA methods.
type StartUpdate struct {
	c      *Client
	permit string
	oldMfa []types.MfaKind
}

// OldMfa returns the currently configured kinds.
func (s *StartUpdate) OldMfa() []types.MfaKind {
	return s.oldMfa
}

type checkMfaArgs struct {
	Kind types.MfaKind `json:"kind"`
}

// Otp requests a re-authentication challenge over SMS or email. A kind
// that is not configured fails locally with Err(self).
func (s *StartUpdate) Otp(ctx context.Context, kind types.MfaKind) (result.Result[*CheckOtp, *StartUpdate], error) {
	var zero result.Result[*CheckOtp, *StartUpdate]

	if kind == types.MfaTotp || !types.KindIn(kind, s.oldMfa) {
		return result.Err[*CheckOtp, *StartUpdate](s), nil
	}
	args := map[string]checkMfaArgs{"check_mfa": {Kind: kind}}
	_, permit, err := s.c.call(ctx, routeUpMfa, args, &s.permit)
	if err != nil {
		return zero, err
	}
	return result.Ok[*CheckOtp, *StartUpdate](&CheckOtp{c: s.c, permit: permit, kind: kind, oldMfa: s.oldMfa}), nil
}

// Totp re-authenticates against the configured authenticator.
func (s *StartUpdate) Totp(ctx context.Context) (result.Result[*CheckTotp, *StartUpdate], error) {
	var zero result.Result[*CheckTotp, *StartUpdate]

	if !types.KindIn(types.MfaTotp, s.oldMfa) {
		return result.Err[*CheckTotp, *StartUpdate](s), nil
	}
	args := map[string]checkMfaArgs{"check_mfa": {Kind: types.MfaTotp}}
	_, permit, err := s.c.call(ctx, routeUpMfa, args, &s.permit)
	if err != nil {
		return zero, err
	}
	return result.Ok[*CheckTotp, *StartUpdate](&CheckTotp{c: s.c, permit: permit, oldMfa: s.oldMfa}), nil
}

type checkRetryRet struct {
	MaybeRetry *bool `json:"maybe_retry"`
}

func checkGuess(ctx context.Context, c *Client, permit string, oldMfa []types.MfaKind, args any) (result.Result[*Decide, *StartUpdate], error) {
	var zero result.Result[*Decide, *StartUpdate]

	ret, nextPermit, err := c.call(ctx, routeUpMfa, args, &permit)
	if err != nil {
		return zero, err
	}
	var payload checkRetryRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	if r := errSlot(payload.MaybeRetry); r.IsErr() {
		return result.Err[*Decide, *StartUpdate](&StartUpdate{c: c, permit: nextPermit, oldMfa: oldMfa}), nil
	}
	return result.Ok[*Decide, *StartUpdate](&Decide{c: c, permit: nextPermit, oldMfa: oldMfa}), nil
}

// CheckOtp awaits the re-authentication code sent by SMS or email.
type CheckOtp struct {
	c      *Client
	permit string
	kind   types.MfaKind
	oldMfa []types.MfaKind
}

// Kind returns the challenged MFA kind.
func (s *CheckOtp) Kind() types.MfaKind {
	return s.kind
}

// Guess submits the code. A wrong guess returns to StartUpdate under a
// fresh permit.
func (s *CheckOtp) Guess(ctx context.Context, otp types.SimpleOtp) (result.Result[*Decide, *StartUpdate], error) {
	args := map[string]guessArgs{"verify_simple_otp": {Guess: otp.Raw()}}
	return checkGuess(ctx, s.c, s.permit, s.oldMfa, args)
}

// CheckTotp awaits the re-authentication authenticator code.
type CheckTotp struct {
	c      *Client
	permit string
	oldMfa []types.MfaKind
}

// Guess submits the code. A wrong guess returns to StartUpdate under a
// fresh permit.
func (s *CheckTotp) Guess(ctx context.Context, code types.Totp) (result.Result[*Decide, *StartUpdate], error) {
	args := map[string]guessArgs{"verify_totp": {Guess: code.Raw()}}
	return checkGuess(ctx, s.c, s.permit, s.oldMfa, args)
}

// Decide branches the flow into a removal or a replacement.
type Decide struct {
	c      *Client
	permit string
	oldMfa []types.MfaKind
}

// OldMfa returns the currently configured kinds.
func (s *Decide) OldMfa() []types.MfaKind {
	return s.oldMfa
}

type removeMfaArgs struct {
	Kind types.MfaKind `json:"kind"`
}

type removeMfaRet struct {
	InvalidMfa *bool `json:"invalid_mfa"`
}

// Remove negotiates removal of kind. Removing a kind that is not set up,
// or the only one configured, fails locally; the provider re-checks both.
// Nothing is removed until FinalizeRemoval commits.
func (s *Decide) Remove(ctx context.Context, kind types.MfaKind) (result.Result[*FinalizeRemoval, CannotRemoveMfa], error) {
	var zero result.Result[*FinalizeRemoval, CannotRemoveMfa]

	if !types.KindIn(kind, s.oldMfa) {
		return result.Err[*FinalizeRemoval, CannotRemoveMfa](CannotRemoveMfa{Reason: RemoveNotSetUp}), nil
	}
	if len(s.oldMfa) == 1 {
		return result.Err[*FinalizeRemoval, CannotRemoveMfa](CannotRemoveMfa{Reason: RemoveIsOnlyMfaKind}), nil
	}

	args := map[string]removeMfaArgs{"remove_mfa": {Kind: kind}}
	ret, permit, err := s.c.call(ctx, routeUpMfa, args, &s.permit)
	if err != nil {
		return zero, err
	}
	var payload removeMfaRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	// Failure if and only if the provider flagged the removal as invalid.
	if r := errSlot(payload.InvalidMfa); r.IsErr() {
		return result.Err[*FinalizeRemoval, CannotRemoveMfa](CannotRemoveMfa{
			Reason: RemoveUpstream,
			Detail: "MFA State Tampering in Removal",
		}), nil
	}
	return result.Ok[*FinalizeRemoval, CannotRemoveMfa](&FinalizeRemoval{c: s.c, permit: permit, oldMfa: s.oldMfa}), nil
}

// Totp stages a replacement authenticator enrollment.
func (s *Decide) Totp(ctx context.Context) (*EnsureTotpSetup, error) {
	m := mfaSetup{c: s.c, route: routeUpMfa, wireKey: "update_mfa", permit: s.permit}
	uri, permit, err := m.totp(ctx)
	if err != nil {
		return nil, err
	}
	return &EnsureTotpSetup{c: s.c, permit: permit, uri: uri, oldMfa: s.oldMfa}, nil
}

// Sms stages a replacement SMS enrollment against phone.
func (s *Decide) Sms(ctx context.Context, phone string) (*EnsureOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaSms, phone)
}

// Email stages a replacement email enrollment against address.
func (s *Decide) Email(ctx context.Context, address string) (*EnsureOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaEmail, address)
}

func (s *Decide) stageOtp(ctx context.Context, kind types.MfaKind, contact string) (*EnsureOtpSetup, error) {
	m := mfaSetup{c: s.c, route: routeUpMfa, wireKey: "update_mfa", permit: s.permit}
	permit, err := m.otp(ctx, kind, contact)
	if err != nil {
		return nil, err
	}
	return &EnsureOtpSetup{c: s.c, permit: permit, kind: kind, oldMfa: s.oldMfa}, nil
}

// EnsureOtpSetup proves control of the replacement SMS or email method.
// A wrong guess loops back into this state under a fresh permit.
type EnsureOtpSetup struct {
	c      *Client
	permit string
	kind   types.MfaKind
	oldMfa []types.MfaKind
}

// Kind returns the kind being enrolled.
func (s *EnsureOtpSetup) Kind() types.MfaKind {
	return s.kind
}

// Guess submits the received code.
func (s *EnsureOtpSetup) Guess(ctx context.Context, otp types.SimpleOtp) (result.Result[*FinalizeUpdate, *EnsureOtpSetup], error) {
	var zero result.Result[*FinalizeUpdate, *EnsureOtpSetup]

	m := mfaSetup{c: s.c, route: routeUpMfa, permit: s.permit}
	retry, permit, err := m.verifySimple(ctx, otp)
	if err != nil {
		return zero, err
	}
	if retry {
		return result.Err[*FinalizeUpdate, *EnsureOtpSetup](&EnsureOtpSetup{c: s.c, permit: permit, kind: s.kind, oldMfa: s.oldMfa}), nil
	}
	return result.Ok[*FinalizeUpdate, *EnsureOtpSetup](&FinalizeUpdate{c: s.c, permit: permit, oldMfa: s.oldMfa}), nil
}

// EnsureTotpSetup proves control of the replacement authenticator. The
// provisioning URI is only present on the first shape.
type EnsureTotpSetup struct {
	c      *Client
	permit string
	uri    string
	oldMfa []types.MfaKind
}

// ProvisioningURI returns the otpauth URI, or "" on a retry shape.
func (s *EnsureTotpSetup) ProvisioningURI() string {
	return s.uri
}

// Guess submits the authenticator code.
func (s *EnsureTotpSetup) Guess(ctx context.Context, code types.Totp) (result.Result[*FinalizeUpdate, *EnsureTotpSetup], error) {
	var zero result.Result[*FinalizeUpdate, *EnsureTotpSetup]

	m := mfaSetup{c: s.c, route: routeUpMfa, permit: s.permit}
	retry, permit, err := m.verifyTotp(ctx, code)
	if err != nil {
		return zero, err
	}
	if retry {
		return result.Err[*FinalizeUpdate, *EnsureTotpSetup](&EnsureTotpSetup{c: s.c, permit: permit, oldMfa: s.oldMfa}), nil
	}
	return result.Ok[*FinalizeUpdate, *EnsureTotpSetup](&FinalizeUpdate{c: s.c, permit: permit, oldMfa: s.oldMfa}), nil
}

type finalizeArgs struct {
	Token string `json:"token"`
}

type finalizeRet struct {
	Token  *Token `json:"token"`
	Failed *Token `json:"failed"`
}

func finalize(ctx context.Context, c *Client, permit, wireKey string, token *Token) (result.Result[*Token, UpdateMfaFailure], error) {
	var zero result.Result[*Token, UpdateMfaFailure]

	args := map[string]finalizeArgs{wireKey: {Token: token.takeEncoded()}}
	ret, _, err := c.call(ctx, routeUpMfa, args, &permit)
	if err != nil {
		return zero, err
	}
	var payload finalizeRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	switch {
	case payload.Token != nil && payload.Failed != nil:
		return zero, deserializationErr(errBothSlots)
	case payload.Token != nil:
		return result.Ok[*Token, UpdateMfaFailure](payload.Token), nil
	case payload.Failed != nil:
		return result.Err[*Token, UpdateMfaFailure](UpdateMfaFailure{NewToken: payload.Failed}), nil
	default:
		return zero, deserializationErr(errNoSlot)
	}
}

// FinalizeRemoval commits the negotiated removal. This is the first and
// only step that mutates the account's MFA configuration.
type FinalizeRemoval struct {
	c      *Client
	permit string
	oldMfa []types.MfaKind
}

// Finalize commits, consuming the session token and returning a rotated
// one. On failure the replacement token in the error keeps the user
// logged in.
func (s *FinalizeRemoval) Finalize(ctx context.Context, token *Token) (result.Result[*Token, UpdateMfaFailure], error) {
	return finalize(ctx, s.c, s.permit, "finalize_removal", token)
}

// FinalizeUpdate commits the verified replacement method.
type FinalizeUpdate struct {
	c      *Client
	permit string
	oldMfa []types.MfaKind
}

// Finalize commits, consuming the session token and returning a rotated
// one.
func (s *FinalizeUpdate) Finalize(ctx context.Context, token *Token) (result.Result[*Token, UpdateMfaFailure], error) {
	return finalize(ctx, s.c, s.permit, "finalize_update", token)
}
