package client

import (
	"context"

	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/lib/result"
)

// TicketKind scopes what an issued recovery ticket may reset. Mutual
// tickets cover one of password or MFA; Full tickets also allow both.
type TicketKind string

const (
	TicketMutual TicketKind = "Mutual"
	TicketFull   TicketKind = "Full"
)

// RecoveryOperation is what the end user redeems the ticket for.
type RecoveryOperation string

const (
	ResetPassword RecoveryOperation = "ResetPassword"
	ResetMfa      RecoveryOperation = "ResetMfa"
	ResetAll      RecoveryOperation = "ResetAll"
)

// TicketVerificationReason identifies a redemption refusal.
type TicketVerificationReason string

const (
	// InvalidTicket: unknown, expired or already-redeemed ticket.
	InvalidTicket TicketVerificationReason = "InvalidTicket"

	// InvalidOp: the operation exceeds the ticket's kind, e.g. ResetAll
	// on a Mutual ticket.
	InvalidOp TicketVerificationReason = "InvalidOp"
)

// TicketVerificationError is the expected redemption failure.
type TicketVerificationError struct {
	Reason TicketVerificationReason
}

// IssuedTicket pairs a fresh recovery ticket with the issuing admin's
// rotated session token. Both are must-use.
type IssuedTicket struct {
	Ticket   *Ticket
	NewToken *Token
}

// TicketFlow covers issuing and redeeming recovery tickets.
type TicketFlow struct {
	c *Client
}

// Ticket starts a new ticket flow.
func (c *Client) Ticket() *TicketFlow {
	return &TicketFlow{c: c}
}

type issueTicketArgs struct {
	Token    string     `json:"token"`
	Username string     `json:"username"`
	Kind     TicketKind `json:"kind"`
	Reason   string     `json:"reason"`
}

type issueTicketOk struct {
	Ticket   *Ticket `json:"ticket"`
	NewToken *Token  `json:"new_token"`
}

type issueTicketRet struct {
	Ok     *issueTicketOk `json:"issue_ticket"`
	Denied *bool          `json:"denied"`
}

// Issue creates a recovery ticket for username, consuming the admin's
// session token and rotating it. The reason is recorded server-side for
// audit.
func (f *TicketFlow) Issue(ctx context.Context, adminToken *Token, username string, kind TicketKind, reason string) (result.Result[IssuedTicket, Opaque], error) {
	var zero result.Result[IssuedTicket, Opaque]

	args := map[string]issueTicketArgs{"issue_ticket": {
		Token:    adminToken.takeEncoded(),
		Username: username,
		Kind:     kind,
		Reason:   reason,
	}}
	ret, _, err := f.c.call(ctx, routeRecover, args, nil)
	if err != nil {
		return zero, err
	}
	var payload issueTicketRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlot(payload.Ok, payload.Denied)
	if err != nil {
		return zero, err
	}
	return result.MapErr(result.Map(r, func(ok issueTicketOk) IssuedTicket {
		return IssuedTicket{Ticket: ok.Ticket, NewToken: ok.NewToken}
	}), func(bool) Opaque { return Opaque{} }), nil
}

type redeemArgs struct {
	Operation RecoveryOperation `json:"operation"`
}

type redeemRet struct {
	Verified *RecoveryOperation        `json:"redeem"`
	Failure  *TicketVerificationReason `json:"failure"`
}

// Redeem consumes the ticket; it travels as the envelope permit. The
// provider invalidates it whether or not redemption succeeds.
func (f *TicketFlow) Redeem(ctx context.Context, ticket *Ticket, op RecoveryOperation) (result.Result[*VerifiedTicket, TicketVerificationError], error) {
	var zero result.Result[*VerifiedTicket, TicketVerificationError]

	permit := ticket.takeEncoded()
	args := map[string]redeemArgs{"redeem": {Operation: op}}
	ret, nextPermit, err := f.c.call(ctx, routeRecover, args, &permit)
	if err != nil {
		return zero, err
	}
	var payload redeemRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	r, err := twoSlot(payload.Verified, payload.Failure)
	if err != nil {
		return zero, err
	}
	return result.MapErr(result.Map(r, func(verified RecoveryOperation) *VerifiedTicket {
		return &VerifiedTicket{c: f.c, permit: nextPermit, op: verified}
	}), func(reason TicketVerificationReason) TicketVerificationError {
		return TicketVerificationError{Reason: reason}
	}), nil
}

// TicketStep is the state a verified ticket routes to: password reset
// first, or straight to MFA setup.
type TicketStep interface {
	isTicketStep()
}

// VerifiedTicket is a redeemed ticket awaiting its recovery operation.
type VerifiedTicket struct {
	c      *Client
	permit string
	op     RecoveryOperation
}

// Operation returns the granted recovery operation.
func (s *VerifiedTicket) Operation() RecoveryOperation {
	return s.op
}

// Proceed routes to the first recovery step without a round trip:
// password reset for ResetPassword and ResetAll, MFA setup for ResetMfa.
func (s *VerifiedTicket) Proceed() TicketStep {
	if s.op == ResetMfa {
		return &RecoverySetupMfa{m: mfaSetup{c: s.c, route: routeRecover, wireKey: "setup_recovery_mfa", permit: s.permit}, op: s.op}
	}
	return &ResetPasswordStep{c: s.c, permit: s.permit, op: s.op}
}

// ResetPasswordStep sets the account's replacement password.
type ResetPasswordStep struct {
	c      *Client
	permit string
	op     RecoveryOperation
}

func (*ResetPasswordStep) isTicketStep() {}

// PasswordResetOutcome is what follows a password reset: MFA setup for
// ResetAll, otherwise completion.
type PasswordResetOutcome struct {
	SetupMfa *RecoverySetupMfa
	Complete *CompleteRecovery
}

// Set stores the new password.
func (s *ResetPasswordStep) Set(ctx context.Context, password types.Password) (PasswordResetOutcome, error) {
	args := map[string]passwordArgs{"reset_password": {Password: password.Raw()}}
	_, permit, err := s.c.call(ctx, routeRecover, args, &s.permit)
	if err != nil {
		return PasswordResetOutcome{}, err
	}
	if s.op == ResetAll {
		return PasswordResetOutcome{
			SetupMfa: &RecoverySetupMfa{m: mfaSetup{c: s.c, route: routeRecover, wireKey: "setup_recovery_mfa", permit: permit}, op: s.op},
		}, nil
	}
	return PasswordResetOutcome{Complete: &CompleteRecovery{c: s.c, permit: permit, op: s.op}}, nil
}

// RecoverySetupMfa replaces the account's MFA configuration with one
// freshly verified method.
type RecoverySetupMfa struct {
	m  mfaSetup
	op RecoveryOperation
}

func (*RecoverySetupMfa) isTicketStep() {}

// Totp stages an authenticator enrollment.
func (s *RecoverySetupMfa) Totp(ctx context.Context) (*RecoveryVerifyTotp, error) {
	uri, permit, err := s.m.totp(ctx)
	if err != nil {
		return nil, err
	}
	next := &RecoveryVerifyTotp{m: s.m, uri: uri, op: s.op}
	next.m.permit = permit
	return next, nil
}

// Sms stages an SMS enrollment against phone.
func (s *RecoverySetupMfa) Sms(ctx context.Context, phone string) (*RecoveryVerifyOtp, error) {
	return s.stageOtp(ctx, types.MfaSms, phone)
}

// Email stages an email enrollment against address.
func (s *RecoverySetupMfa) Email(ctx context.Context, address string) (*RecoveryVerifyOtp, error) {
	return s.stageOtp(ctx, types.MfaEmail, address)
}

func (s *RecoverySetupMfa) stageOtp(ctx context.Context, kind types.MfaKind, contact string) (*RecoveryVerifyOtp, error) {
	permit, err := s.m.otp(ctx, kind, contact)
	if err != nil {
		return nil, err
	}
	next := &RecoveryVerifyOtp{m: s.m, kind: kind, op: s.op}
	next.m.permit = permit
	return next, nil
}

// RecoveryVerifyOtp proves control of the staged SMS or email method.
type RecoveryVerifyOtp struct {
	m    mfaSetup
	kind types.MfaKind
	op   RecoveryOperation
}

// Guess submits the received code.
func (s *RecoveryVerifyOtp) Guess(ctx context.Context, otp types.SimpleOtp) (result.Result[*CompleteRecovery, *RecoveryVerifyOtp], error) {
	var zero result.Result[*CompleteRecovery, *RecoveryVerifyOtp]

	retry, permit, err := s.m.verifySimple(ctx, otp)
	if err != nil {
		return zero, err
	}
	if retry {
		next := *s
		next.m.permit = permit
		return result.Err[*CompleteRecovery, *RecoveryVerifyOtp](&next), nil
	}
	return result.Ok[*CompleteRecovery, *RecoveryVerifyOtp](&CompleteRecovery{c: s.m.c, permit: permit, op: s.op}), nil
}

// RecoveryVerifyTotp proves control of the staged authenticator.
type RecoveryVerifyTotp struct {
	m   mfaSetup
	uri string
	op  RecoveryOperation
}

// ProvisioningURI returns the otpauth URI, or "" on a retry shape.
func (s *RecoveryVerifyTotp) ProvisioningURI() string {
	return s.uri
}

// Guess submits the authenticator code.
func (s *RecoveryVerifyTotp) Guess(ctx context.Context, code types.Totp) (result.Result[*CompleteRecovery, *RecoveryVerifyTotp], error) {
	var zero result.Result[*CompleteRecovery, *RecoveryVerifyTotp]

	retry, permit, err := s.m.verifyTotp(ctx, code)
	if err != nil {
		return zero, err
	}
	if retry {
		next := &RecoveryVerifyTotp{m: s.m, op: s.op}
		next.m.permit = permit
		return result.Err[*CompleteRecovery, *RecoveryVerifyTotp](next), nil
	}
	return result.Ok[*CompleteRecovery, *RecoveryVerifyTotp](&CompleteRecovery{c: s.m.c, permit: permit, op: s.op}), nil
}

// CompleteRecovery commits the recovery and logs the recovered user in.
type CompleteRecovery struct {
	c      *Client
	permit string
	op     RecoveryOperation
}

// Complete commits and issues a fresh session token.
func (s *CompleteRecovery) Complete(ctx context.Context) (*Token, error) {
	args := map[string]struct{}{"complete_recovery": {}}
	ret, _, err := s.c.call(ctx, routeRecover, args, &s.permit)
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
