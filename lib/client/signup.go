package client

import (
	"context"

	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/lib/result"
)

// UsernameExists is the expected signup ingress failure.
type UsernameExists struct {
	Username string
}

// SignupFlow is the ingress handle for account creation.
type SignupFlow struct {
	c *Client
}

// Signup starts a new signup flow.
func (c *Client) Signup() *SignupFlow {
	return &SignupFlow{c: c}
}

type helloSignupArgs struct {
	Username string `json:"username"`
}

type helloSignupRet struct {
	UsernameExists *bool `json:"username_exists"`
}

// Start reserves the username.
func (f *SignupFlow) Start(ctx context.Context, username string) (result.Result[*SetPassword, UsernameExists], error) {
	var zero result.Result[*SetPassword, UsernameExists]

	args := map[string]helloSignupArgs{"hello_signup": {Username: username}}
	ret, permit, err := f.c.call(ctx, routeSignup, args, nil)
	if err != nil {
		return zero, err
	}
	var payload helloSignupRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}

	r := errSlot(payload.UsernameExists)
	if r.IsErr() {
		return result.Err[*SetPassword, UsernameExists](UsernameExists{Username: username}), nil
	}
	return result.Ok[*SetPassword, UsernameExists](&SetPassword{c: f.c, permit: permit}), nil
}

// SetPassword awaits the account password.
type SetPassword struct {
	c      *Client
	permit string
}

type passwordArgs struct {
	Password string `json:"password"`
}

// Set stores the password and moves to first-MFA setup.
func (s *SetPassword) Set(ctx context.Context, password types.Password) (*SignupSetupFirstMfa, error) {
	args := map[string]passwordArgs{"password": {Password: password.Raw()}}
	_, permit, err := s.c.call(ctx, routeSignup, args, &s.permit)
	if err != nil {
		return nil, err
	}
	return &SignupSetupFirstMfa{m: mfaSetup{c: s.c, route: routeSignup, wireKey: "setup_first_mfa", permit: permit}}, nil
}

// SignupSetupFirstMfa picks the account's first MFA method.
type SignupSetupFirstMfa struct {
	m mfaSetup
}

// Totp stages an authenticator enrollment; render the returned state's
// provisioning URI as a QR code.
func (s *SignupSetupFirstMfa) Totp(ctx context.Context) (*SignupVerifyTotpSetup, error) {
	uri, permit, err := s.m.totp(ctx)
	if err != nil {
		return nil, err
	}
	return &SignupVerifyTotpSetup{
		m:   mfaSetup{c: s.m.c, route: routeSignup, wireKey: "new_mfa", permit: permit},
		uri: uri,
	}, nil
}

// Sms stages an SMS enrollment against phone.
func (s *SignupSetupFirstMfa) Sms(ctx context.Context, phone string) (*SignupVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaSms, phone)
}

// Email stages an email enrollment against address.
func (s *SignupSetupFirstMfa) Email(ctx context.Context, address string) (*SignupVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaEmail, address)
}

func (s *SignupSetupFirstMfa) stageOtp(ctx context.Context, kind types.MfaKind, contact string) (*SignupVerifyOtpSetup, error) {
	permit, err := s.m.otp(ctx, kind, contact)
	if err != nil {
		return nil, err
	}
	return &SignupVerifyOtpSetup{
		m:    mfaSetup{c: s.m.c, route: routeSignup, wireKey: "new_mfa", permit: permit},
		kind: kind,
	}, nil
}

// SignupVerifyOtpSetup proves control of a staged SMS or email method.
type SignupVerifyOtpSetup struct {
	m            mfaSetup
	kind         types.MfaKind
	alreadySetup []types.MfaKind
}

// CurrentMfa returns the kind being verified.
func (s *SignupVerifyOtpSetup) CurrentMfa() types.MfaKind {
	return s.kind
}

// Guess submits the received code. A wrong guess stays in verification
// under a fresh permit.
func (s *SignupVerifyOtpSetup) Guess(ctx context.Context, otp types.SimpleOtp) (result.Result[*SignupMfaOrFinalize, *SignupVerifyOtpSetup], error) {
	var zero result.Result[*SignupMfaOrFinalize, *SignupVerifyOtpSetup]

	retry, permit, err := s.m.verifySimple(ctx, otp)
	if err != nil {
		return zero, err
	}
	if retry {
		next := *s
		next.m.permit = permit
		return result.Err[*SignupMfaOrFinalize, *SignupVerifyOtpSetup](&next), nil
	}
	return result.Ok[*SignupMfaOrFinalize, *SignupVerifyOtpSetup](&SignupMfaOrFinalize{
		m:            mfaSetup{c: s.m.c, route: routeSignup, wireKey: "new_mfa", permit: permit},
		alreadySetup: append(s.alreadySetup, s.kind),
	}), nil
}

// SignupVerifyTotpSetup proves control of a staged authenticator. The
// provisioning URI is only present on the first shape; retry states carry
// none.
type SignupVerifyTotpSetup struct {
	m            mfaSetup
	uri          string
	alreadySetup []types.MfaKind
}

// CurrentMfa returns the kind being verified.
func (s *SignupVerifyTotpSetup) CurrentMfa() types.MfaKind {
	return types.MfaTotp
}

// ProvisioningURI returns the otpauth URI to render as a QR code, or ""
// on a retry shape.
func (s *SignupVerifyTotpSetup) ProvisioningURI() string {
	return s.uri
}

// Guess submits the authenticator code.
func (s *SignupVerifyTotpSetup) Guess(ctx context.Context, code types.Totp) (result.Result[*SignupMfaOrFinalize, *SignupVerifyTotpSetup], error) {
	var zero result.Result[*SignupMfaOrFinalize, *SignupVerifyTotpSetup]

	retry, permit, err := s.m.verifyTotp(ctx, code)
	if err != nil {
		return zero, err
	}
	if retry {
		next := &SignupVerifyTotpSetup{m: s.m, alreadySetup: s.alreadySetup}
		next.m.permit = permit
		return result.Err[*SignupMfaOrFinalize, *SignupVerifyTotpSetup](next), nil
	}
	return result.Ok[*SignupMfaOrFinalize, *SignupVerifyTotpSetup](&SignupMfaOrFinalize{
		m:            mfaSetup{c: s.m.c, route: routeSignup, wireKey: "new_mfa", permit: permit},
		alreadySetup: append(s.alreadySetup, types.MfaTotp),
	}), nil
}

// SignupMfaOrFinalize either enrolls another MFA method or finalizes the
// account.
type SignupMfaOrFinalize struct {
	m            mfaSetup
	alreadySetup []types.MfaKind
}

// AlreadySetup returns the kinds enrolled so far.
func (s *SignupMfaOrFinalize) AlreadySetup() []types.MfaKind {
	return s.alreadySetup
}

// Totp stages one more authenticator enrollment.
func (s *SignupMfaOrFinalize) Totp(ctx context.Context) (*SignupVerifyTotpSetup, error) {
	uri, permit, err := s.m.totp(ctx)
	if err != nil {
		return nil, err
	}
	next := &SignupVerifyTotpSetup{m: s.m, uri: uri, alreadySetup: s.alreadySetup}
	next.m.permit = permit
	return next, nil
}

// Sms stages one more SMS enrollment.
func (s *SignupMfaOrFinalize) Sms(ctx context.Context, phone string) (*SignupVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaSms, phone)
}

// Email stages one more email enrollment.
func (s *SignupMfaOrFinalize) Email(ctx context.Context, address string) (*SignupVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaEmail, address)
}

func (s *SignupMfaOrFinalize) stageOtp(ctx context.Context, kind types.MfaKind, contact string) (*SignupVerifyOtpSetup, error) {
	permit, err := s.m.otp(ctx, kind, contact)
	if err != nil {
		return nil, err
	}
	next := &SignupVerifyOtpSetup{m: s.m, kind: kind, alreadySetup: s.alreadySetup}
	next.m.permit = permit
	return next, nil
}

// Finish commits the account and logs the new user in.
func (s *SignupMfaOrFinalize) Finish(ctx context.Context) (*Token, error) {
	args := map[string]struct{}{"finish_signup": {}}
	ret, _, err := s.m.c.call(ctx, routeSignup, args, &s.m.permit)
	if err != nil {
		return nil, err
	}
	var payload tokenRet
	if err := decodeRet(ret, &payload); err != nil {
		return nil, err
	}
	if payload.Token == nil {
		return nil, deserializationErr(errNoSlot)
	}
	return payload.Token, nil
}
