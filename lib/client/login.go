package client

import (
	"context"

	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/lib/result"
)

// LoginFailure is the expected ingress failure set for login and
// migrate-login. The values are the wire names.
type LoginFailure string

const (
	LoginUsernameNotFound  LoginFailure = "UsernameNotFound"
	LoginIncorrectPassword LoginFailure = "IncorrectPassword"
	LoginIllegalMfaKinds   LoginFailure = "IllegalMfaKinds"

	// LoginWrongFlow means the account's state does not match the flow:
	// normal login for an account that still must migrate, or
	// migrate-login for an account that already has MFA set up.
	LoginWrongFlow LoginFailure = "WrongFlow"
)

// LoginFlow is the ingress handle for the login flow.
type LoginFlow struct {
	c *Client
}

// Login starts a new login flow.
func (c *Client) Login() *LoginFlow {
	return &LoginFlow{c: c}
}

type helloLoginArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type helloLoginRet struct {
	Kinds   *[]types.MfaKind `json:"hello_login"`
	Failure *LoginFailure    `json:"failure"`
}

// Start verifies the primary credentials. On success the provider reports
// which MFA kinds the account can use.
func (f *LoginFlow) Start(ctx context.Context, username string, password types.Password) (result.Result[*InitMfa, LoginFailure], error) {
	var zero result.Result[*InitMfa, LoginFailure]

	args := map[string]helloLoginArgs{"hello_login": {Username: username, Password: password.Raw()}}
	ret, permit, err := f.c.call(ctx, routeLogin, args, nil)
	if err != nil {
		return zero, err
	}

	var payload helloLoginRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlot(payload.Kinds, payload.Failure)
	if err != nil {
		return zero, err
	}
	return result.Map(r, func(kinds []types.MfaKind) *InitMfa {
		return &InitMfa{initMfaState{c: f.c, permit: permit, available: kinds}}
	}), nil
}

// initMfaState is the shared shape of InitMfa and RetryInitMfa.
type initMfaState struct {
	c         *Client
	permit    string
	available []types.MfaKind
}

// Available returns the MFA kinds the provider reported for the account.
// Selecting any other kind fails locally without a round trip.
func (s *initMfaState) Available() []types.MfaKind {
	return s.available
}

type initMfaArgs struct {
	Kind types.MfaKind `json:"kind"`
}

// selectOtp performs the init transition for an OTP kind. An unavailable
// kind returns Err(self) unchanged so the caller can pick another kind.
func selectOtp[S any](ctx context.Context, st initMfaState, wireKey string, kind types.MfaKind, self S) (result.Result[*VerifyMfa, S], error) {
	var zero result.Result[*VerifyMfa, S]

	if !types.KindIn(kind, st.available) {
		return result.Err[*VerifyMfa, S](self), nil
	}
	args := map[string]initMfaArgs{wireKey: {Kind: kind}}
	_, permit, err := st.c.call(ctx, routeLogin, args, &st.permit)
	if err != nil {
		return zero, err
	}
	return result.Ok[*VerifyMfa, S](&VerifyMfa{c: st.c, permit: permit, kind: kind}), nil
}

func selectTotp[S any](ctx context.Context, st initMfaState, wireKey string, self S) (result.Result[*VerifyTotp, S], error) {
	var zero result.Result[*VerifyTotp, S]

	if !types.KindIn(types.MfaTotp, st.available) {
		return result.Err[*VerifyTotp, S](self), nil
	}
	args := map[string]initMfaArgs{wireKey: {Kind: types.MfaTotp}}
	_, permit, err := st.c.call(ctx, routeLogin, args, &st.permit)
	if err != nil {
		return zero, err
	}
	return result.Ok[*VerifyTotp, S](&VerifyTotp{c: st.c, permit: permit}), nil
}

// InitMfa asks the provider to challenge one of the account's MFA kinds.
type InitMfa struct {
	initMfaState
}

// Sms requests an SMS challenge.
func (s *InitMfa) Sms(ctx context.Context) (result.Result[*VerifyMfa, *InitMfa], error) {
	return selectOtp(ctx, s.initMfaState, "init_mfa", types.MfaSms, s)
}

// Email requests an email challenge.
func (s *InitMfa) Email(ctx context.Context) (result.Result[*VerifyMfa, *InitMfa], error) {
	return selectOtp(ctx, s.initMfaState, "init_mfa", types.MfaEmail, s)
}

// Totp moves straight to authenticator verification.
func (s *InitMfa) Totp(ctx context.Context) (result.Result[*VerifyTotp, *InitMfa], error) {
	return selectTotp(ctx, s.initMfaState, "init_mfa", s)
}

// RetryInitMfa is InitMfa after a failed verification. The distinct stage
// lets the provider apply a different policy to repeat attempts.
type RetryInitMfa struct {
	initMfaState
}

// Sms requests an SMS challenge.
func (s *RetryInitMfa) Sms(ctx context.Context) (result.Result[*VerifyMfa, *RetryInitMfa], error) {
	return selectOtp(ctx, s.initMfaState, "retry_init_mfa", types.MfaSms, s)
}

// Email requests an email challenge.
func (s *RetryInitMfa) Email(ctx context.Context) (result.Result[*VerifyMfa, *RetryInitMfa], error) {
	return selectOtp(ctx, s.initMfaState, "retry_init_mfa", types.MfaEmail, s)
}

// Totp moves straight to authenticator verification.
func (s *RetryInitMfa) Totp(ctx context.Context) (result.Result[*VerifyTotp, *RetryInitMfa], error) {
	return selectTotp(ctx, s.initMfaState, "retry_init_mfa", s)
}

type verifyLoginRet struct {
	Token      *Token           `json:"token"`
	MaybeRetry *[]types.MfaKind `json:"maybe_retry"`
}

func verifyLogin(ctx context.Context, c *Client, permit string, args any) (result.Result[*Token, *RetryInitMfa], error) {
	var zero result.Result[*Token, *RetryInitMfa]

	ret, nextPermit, err := c.call(ctx, routeLogin, args, &permit)
	if err != nil {
		return zero, err
	}
	var payload verifyLoginRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlotPtr(payload.Token, payload.MaybeRetry)
	if err != nil {
		return zero, err
	}
	return result.MapErr(r, func(kinds []types.MfaKind) *RetryInitMfa {
		return &RetryInitMfa{initMfaState{c: c, permit: nextPermit, available: kinds}}
	}), nil
}

// VerifyMfa awaits the six-digit code the provider sent by SMS or email.
type VerifyMfa struct {
	c      *Client
	permit string
	kind   types.MfaKind
}

// Kind returns the challenged MFA kind.
func (s *VerifyMfa) Kind() types.MfaKind {
	return s.kind
}

// Guess submits the code. A wrong guess moves the flow back to
// RetryInitMfa under a fresh permit.
func (s *VerifyMfa) Guess(ctx context.Context, otp types.SimpleOtp) (result.Result[*Token, *RetryInitMfa], error) {
	args := map[string]guessArgs{"verify_simple_otp": {Guess: otp.Raw()}}
	return verifyLogin(ctx, s.c, s.permit, args)
}

// VerifyTotp awaits an eight-digit authenticator code.
type VerifyTotp struct {
	c      *Client
	permit string
}

// Guess submits the code. A wrong guess moves the flow back to
// RetryInitMfa under a fresh permit.
func (s *VerifyTotp) Guess(ctx context.Context, code types.Totp) (result.Result[*Token, *RetryInitMfa], error) {
	args := map[string]guessArgs{"verify_totp": {Guess: code.Raw()}}
	return verifyLogin(ctx, s.c, s.permit, args)
}
