package client

import (
	"context"

	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/lib/result"
)

// MigrateLoginFlow onboards a legacy account onto MFA: the existing
// password is verified at ingress, the user enrolls at least one MFA
// method, and the terminal step issues a session token. Accounts that
// already have MFA get LoginWrongFlow and must use the normal login.
type MigrateLoginFlow struct {
	c *Client
}

// MigrateLogin starts a new migrate-login flow.
func (c *Client) MigrateLogin() *MigrateLoginFlow {
	return &MigrateLoginFlow{c: c}
}

type helloMigrateArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type helloMigrateRet struct {
	Ack     *struct{}     `json:"hello_mlogin"`
	Failure *LoginFailure `json:"failure"`
}

// Start verifies the legacy credentials.
func (f *MigrateLoginFlow) Start(ctx context.Context, username string, password types.Password) (result.Result[*MigrateSetupFirstMfa, LoginFailure], error) {
	var zero result.Result[*MigrateSetupFirstMfa, LoginFailure]

	args := map[string]helloMigrateArgs{"hello_mlogin": {Username: username, Password: password.Raw()}}
	ret, permit, err := f.c.call(ctx, routeMLogin, args, nil)
	if err != nil {
		return zero, err
	}
	var payload helloMigrateRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlot(payload.Ack, payload.Failure)
	if err != nil {
		return zero, err
	}
	return result.Map(r, func(struct{}) *MigrateSetupFirstMfa {
		return &MigrateSetupFirstMfa{m: mfaSetup{c: f.c, route: routeMLogin, wireKey: "setup_first_mfa", permit: permit}}
	}), nil
}

// MigrateSetupFirstMfa picks the migrating account's first MFA method.
type MigrateSetupFirstMfa struct {
	m mfaSetup
}

// Totp stages an authenticator enrollment.
func (s *MigrateSetupFirstMfa) Totp(ctx context.Context) (*MigrateVerifyTotpSetup, error) {
	uri, permit, err := s.m.totp(ctx)
	if err != nil {
		return nil, err
	}
	return &MigrateVerifyTotpSetup{
		m:   mfaSetup{c: s.m.c, route: routeMLogin, wireKey: "new_mfa", permit: permit},
		uri: uri,
	}, nil
}

// Sms stages an SMS enrollment against phone.
func (s *MigrateSetupFirstMfa) Sms(ctx context.Context, phone string) (*MigrateVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaSms, phone)
}

// Email stages an email enrollment against address.
func (s *MigrateSetupFirstMfa) Email(ctx context.Context, address string) (*MigrateVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaEmail, address)
}

func (s *MigrateSetupFirstMfa) stageOtp(ctx context.Context, kind types.MfaKind, contact string) (*MigrateVerifyOtpSetup, error) {
	permit, err := s.m.otp(ctx, kind, contact)
	if err != nil {
		return nil, err
	}
	return &MigrateVerifyOtpSetup{
		m:    mfaSetup{c: s.m.c, route: routeMLogin, wireKey: "new_mfa", permit: permit},
		kind: kind,
	}, nil
}

// MigrateVerifyOtpSetup proves control of a staged SMS or email method.
type MigrateVerifyOtpSetup struct {
	m            mfaSetup
	kind         types.MfaKind
	alreadySetup []types.MfaKind
}

// CurrentMfa returns the kind being verified.
func (s *MigrateVerifyOtpSetup) CurrentMfa() types.MfaKind {
	return s.kind
}

// Guess submits the received code.
func (s *MigrateVerifyOtpSetup) Guess(ctx context.Context, otp types.SimpleOtp) (result.Result[*MigrateMfaOrLogin, *MigrateVerifyOtpSetup], error) {
	var zero result.Result[*MigrateMfaOrLogin, *MigrateVerifyOtpSetup]

	retry, permit, err := s.m.verifySimple(ctx, otp)
	if err != nil {
		return zero, err
	}
	if retry {
		next := *s
		next.m.permit = permit
		return result.Err[*MigrateMfaOrLogin, *MigrateVerifyOtpSetup](&next), nil
	}
	return result.Ok[*MigrateMfaOrLogin, *MigrateVerifyOtpSetup](&MigrateMfaOrLogin{
		m:            mfaSetup{c: s.m.c, route: routeMLogin, wireKey: "new_mfa", permit: permit},
		alreadySetup: append(s.alreadySetup, s.kind),
	}), nil
}

// MigrateVerifyTotpSetup proves control of a staged authenticator. The
// provisioning URI is only present on the first shape.
type MigrateVerifyTotpSetup struct {
	m            mfaSetup
	uri          string
	alreadySetup []types.MfaKind
}

// CurrentMfa returns the kind being verified.
func (s *MigrateVerifyTotpSetup) CurrentMfa() types.MfaKind {
	return types.MfaTotp
}

// ProvisioningURI returns the otpauth URI, or "" on a retry shape.
func (s *MigrateVerifyTotpSetup) ProvisioningURI() string {
	return s.uri
}

// Guess submits the authenticator code.
func (s *MigrateVerifyTotpSetup) Guess(ctx context.Context, code types.Totp) (result.Result[*MigrateMfaOrLogin, *MigrateVerifyTotpSetup], error) {
	var zero result.Result[*MigrateMfaOrLogin, *MigrateVerifyTotpSetup]

	retry, permit, err := s.m.verifyTotp(ctx, code)
	if err != nil {
		return zero, err
	}
	if retry {
		next := &MigrateVerifyTotpSetup{m: s.m, alreadySetup: s.alreadySetup}
		next.m.permit = permit
		return result.Err[*MigrateMfaOrLogin, *MigrateVerifyTotpSetup](next), nil
	}
	return result.Ok[*MigrateMfaOrLogin, *MigrateVerifyTotpSetup](&MigrateMfaOrLogin{
		m:            mfaSetup{c: s.m.c, route: routeMLogin, wireKey: "new_mfa", permit: permit},
		alreadySetup: append(s.alreadySetup, types.MfaTotp),
	}), nil
}

// MigrateMfaOrLogin either enrolls another MFA method or completes the
// migration and logs the user in.
type MigrateMfaOrLogin struct {
	m            mfaSetup
	alreadySetup []types.MfaKind
}

// AlreadySetup returns the kinds enrolled so far.
func (s *MigrateMfaOrLogin) AlreadySetup() []types.MfaKind {
	return s.alreadySetup
}

// Totp stages one more authenticator enrollment.
func (s *MigrateMfaOrLogin) Totp(ctx context.Context) (*MigrateVerifyTotpSetup, error) {
	uri, permit, err := s.m.totp(ctx)
	if err != nil {
		return nil, err
	}
	next := &MigrateVerifyTotpSetup{m: s.m, uri: uri, alreadySetup: s.alreadySetup}
	next.m.permit = permit
	return next, nil
}

// Sms stages one more SMS enrollment.
func (s *MigrateMfaOrLogin) Sms(ctx context.Context, phone string) (*MigrateVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaSms, phone)
}

// Email stages one more email enrollment.
func (s *MigrateMfaOrLogin) Email(ctx context.Context, address string) (*MigrateVerifyOtpSetup, error) {
	return s.stageOtp(ctx, types.MfaEmail, address)
}

func (s *MigrateMfaOrLogin) stageOtp(ctx context.Context, kind types.MfaKind, contact string) (*MigrateVerifyOtpSetup, error) {
	permit, err := s.m.otp(ctx, kind, contact)
	if err != nil {
		return nil, err
	}
	next := &MigrateVerifyOtpSetup{m: s.m, kind: kind, alreadySetup: s.alreadySetup}
	next.m.permit = permit
	return next, nil
}

// Login completes the migration and issues a session token.
func (s *MigrateMfaOrLogin) Login(ctx context.Context) (*Token, error) {
	args := map[string]struct{}{"finish_mlogin": {}}
	ret, _, err := s.m.c.call(ctx, routeMLogin, args, &s.m.permit)
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
