package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stagegate/stagegate-go/lib/client/types"
)

// Flow states serialize to JSON records discriminated by a stage tag, so
// a stateless integrator can hand the blob to the end user and resume
// from whatever comes back. The provider validates the permit and rejects
// tampering; the optional HMAC seal (Options.StateKey) just catches
// corruption before a round trip is wasted.

// ErrBadStateSeal means a sealed state blob failed its integrity check.
var ErrBadStateSeal = errors.New("serialized state failed integrity check")

type sealedState struct {
	State json.RawMessage `json:"state"`
	Mac   string          `json:"mac"`
}

func (c *Client) sealState(rec any) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if len(c.stateKey) == 0 {
		return raw, nil
	}
	mac := hmac.New(sha256.New, c.stateKey)
	mac.Write(raw)
	return json.Marshal(sealedState{State: raw, Mac: hex.EncodeToString(mac.Sum(nil))})
}

func (c *Client) openState(blob []byte, rec any) error {
	raw := blob
	if len(c.stateKey) > 0 {
		var sealed sealedState
		if err := json.Unmarshal(blob, &sealed); err != nil {
			return ErrBadStateSeal
		}
		mac := hmac.New(sha256.New, c.stateKey)
		mac.Write(sealed.State)
		want, err := hex.DecodeString(sealed.Mac)
		if err != nil || !hmac.Equal(mac.Sum(nil), want) {
			return ErrBadStateSeal
		}
		raw = sealed.State
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return fmt.Errorf("unreadable state record: %w", err)
	}
	return nil
}

func unknownStage(flow, stage string) error {
	return fmt.Errorf("%s: unknown stage %q", flow, stage)
}

// Login flow.

const (
	stageInitMfa      = "InitMfa"
	stageRetryInitMfa = "RetryInitMfa"
	stageVerifyOtp    = "VerifyOtp"
	stageVerifyTotp   = "VerifyTotp"
)

type loginRecord struct {
	Stage     string          `json:"stage"`
	Permit    string          `json:"permit"`
	Available []types.MfaKind `json:"available_mfa,omitempty"`
	Kind      types.MfaKind   `json:"kind,omitempty"`
}

// LoginState is any serializable login-flow state.
type LoginState interface {
	Stage() string
	Serialize() ([]byte, error)
}

func (s *InitMfa) Stage() string { return stageInitMfa }

func (s *InitMfa) Serialize() ([]byte, error) {
	return s.c.sealState(loginRecord{Stage: stageInitMfa, Permit: s.permit, Available: s.available})
}

func (s *RetryInitMfa) Stage() string { return stageRetryInitMfa }

func (s *RetryInitMfa) Serialize() ([]byte, error) {
	return s.c.sealState(loginRecord{Stage: stageRetryInitMfa, Permit: s.permit, Available: s.available})
}

func (s *VerifyMfa) Stage() string { return stageVerifyOtp }

func (s *VerifyMfa) Serialize() ([]byte, error) {
	return s.c.sealState(loginRecord{Stage: stageVerifyOtp, Permit: s.permit, Kind: s.kind})
}

func (s *VerifyTotp) Stage() string { return stageVerifyTotp }

func (s *VerifyTotp) Serialize() ([]byte, error) {
	return s.c.sealState(loginRecord{Stage: stageVerifyTotp, Permit: s.permit})
}

// ResumeLogin reconstitutes a login state from a serialized record. Every
// stage tag of the flow has a resume arm.
func (c *Client) ResumeLogin(blob []byte) (LoginState, error) {
	var rec loginRecord
	if err := c.openState(blob, &rec); err != nil {
		return nil, err
	}
	switch rec.Stage {
	case stageInitMfa:
		return &InitMfa{initMfaState{c: c, permit: rec.Permit, available: rec.Available}}, nil
	case stageRetryInitMfa:
		return &RetryInitMfa{initMfaState{c: c, permit: rec.Permit, available: rec.Available}}, nil
	case stageVerifyOtp:
		return &VerifyMfa{c: c, permit: rec.Permit, kind: rec.Kind}, nil
	case stageVerifyTotp:
		return &VerifyTotp{c: c, permit: rec.Permit}, nil
	default:
		return nil, unknownStage("login", rec.Stage)
	}
}

// Signup flow.

const (
	stagePassword        = "Password"
	stageSetupFirstMfa   = "SetupFirstMfa"
	stageSetupMfaOrFinal = "SetupMfaOrFinalize"
	stageVerifyOtpSetup  = "VerifyOtpSetup"
	stageVerifyTotpSetup = "VerifyTotpSetup"
	stageNewMfaOrLogin   = "NewMfaOrLogin"
)

type signupRecord struct {
	Stage        string          `json:"stage"`
	Permit       string          `json:"permit"`
	AlreadySetup []types.MfaKind `json:"already_setup,omitempty"`
	CurrentMfa   *types.MfaKind  `json:"current_mfa,omitempty"`
}

// SignupState is any serializable signup-flow state.
type SignupState interface {
	Stage() string
	Serialize() ([]byte, error)
}

func (s *SetPassword) Stage() string { return stagePassword }

func (s *SetPassword) Serialize() ([]byte, error) {
	return s.c.sealState(signupRecord{Stage: stagePassword, Permit: s.permit})
}

func (s *SignupSetupFirstMfa) Stage() string { return stageSetupFirstMfa }

func (s *SignupSetupFirstMfa) Serialize() ([]byte, error) {
	return s.m.c.sealState(signupRecord{Stage: stageSetupFirstMfa, Permit: s.m.permit})
}

func (s *SignupMfaOrFinalize) Stage() string { return stageSetupMfaOrFinal }

func (s *SignupMfaOrFinalize) Serialize() ([]byte, error) {
	return s.m.c.sealState(signupRecord{Stage: stageSetupMfaOrFinal, Permit: s.m.permit, AlreadySetup: s.alreadySetup})
}

func (s *SignupVerifyOtpSetup) Stage() string { return stageVerifyOtpSetup }

func (s *SignupVerifyOtpSetup) Serialize() ([]byte, error) {
	kind := s.kind
	return s.m.c.sealState(signupRecord{Stage: stageVerifyOtpSetup, Permit: s.m.permit, AlreadySetup: s.alreadySetup, CurrentMfa: &kind})
}

func (s *SignupVerifyTotpSetup) Stage() string { return stageVerifyTotpSetup }

// Serialize drops the provisioning URI: a resumed verification is always
// the bare-retry shape.
func (s *SignupVerifyTotpSetup) Serialize() ([]byte, error) {
	kind := types.MfaTotp
	return s.m.c.sealState(signupRecord{Stage: stageVerifyTotpSetup, Permit: s.m.permit, AlreadySetup: s.alreadySetup, CurrentMfa: &kind})
}

// ResumeSignup reconstitutes a signup state from a serialized record.
func (c *Client) ResumeSignup(blob []byte) (SignupState, error) {
	var rec signupRecord
	if err := c.openState(blob, &rec); err != nil {
		return nil, err
	}
	switch rec.Stage {
	case stagePassword:
		return &SetPassword{c: c, permit: rec.Permit}, nil
	case stageSetupFirstMfa:
		return &SignupSetupFirstMfa{m: mfaSetup{c: c, route: routeSignup, wireKey: "setup_first_mfa", permit: rec.Permit}}, nil
	case stageSetupMfaOrFinal:
		return &SignupMfaOrFinalize{m: mfaSetup{c: c, route: routeSignup, wireKey: "new_mfa", permit: rec.Permit}, alreadySetup: rec.AlreadySetup}, nil
	case stageVerifyOtpSetup:
		if rec.CurrentMfa == nil {
			return nil, fmt.Errorf("signup: %s record lacks current_mfa", rec.Stage)
		}
		return &SignupVerifyOtpSetup{m: mfaSetup{c: c, route: routeSignup, wireKey: "new_mfa", permit: rec.Permit}, kind: *rec.CurrentMfa, alreadySetup: rec.AlreadySetup}, nil
	case stageVerifyTotpSetup:
		return &SignupVerifyTotpSetup{m: mfaSetup{c: c, route: routeSignup, wireKey: "new_mfa", permit: rec.Permit}, alreadySetup: rec.AlreadySetup}, nil
	default:
		return nil, unknownStage("signup", rec.Stage)
	}
}

// Migrate-login flow.

// MigrateLoginState is any serializable migrate-login state.
type MigrateLoginState interface {
	Stage() string
	Serialize() ([]byte, error)
}

func (s *MigrateSetupFirstMfa) Stage() string { return stageSetupFirstMfa }

func (s *MigrateSetupFirstMfa) Serialize() ([]byte, error) {
	return s.m.c.sealState(signupRecord{Stage: stageSetupFirstMfa, Permit: s.m.permit})
}

func (s *MigrateMfaOrLogin) Stage() string { return stageNewMfaOrLogin }

func (s *MigrateMfaOrLogin) Serialize() ([]byte, error) {
	return s.m.c.sealState(signupRecord{Stage: stageNewMfaOrLogin, Permit: s.m.permit, AlreadySetup: s.alreadySetup})
}

func (s *MigrateVerifyOtpSetup) Stage() string { return stageVerifyOtpSetup }

func (s *MigrateVerifyOtpSetup) Serialize() ([]byte, error) {
	kind := s.kind
	return s.m.c.sealState(signupRecord{Stage: stageVerifyOtpSetup, Permit: s.m.permit, AlreadySetup: s.alreadySetup, CurrentMfa: &kind})
}

func (s *MigrateVerifyTotpSetup) Stage() string { return stageVerifyTotpSetup }

// Serialize drops the provisioning URI, as in the signup flow.
func (s *MigrateVerifyTotpSetup) Serialize() ([]byte, error) {
	kind := types.MfaTotp
	return s.m.c.sealState(signupRecord{Stage: stageVerifyTotpSetup, Permit: s.m.permit, AlreadySetup: s.alreadySetup, CurrentMfa: &kind})
}

// ResumeMigrateLogin reconstitutes a migrate-login state from a
// serialized record.
func (c *Client) ResumeMigrateLogin(blob []byte) (MigrateLoginState, error) {
	var rec signupRecord
	if err := c.openState(blob, &rec); err != nil {
		return nil, err
	}
	switch rec.Stage {
	case stageSetupFirstMfa:
		return &MigrateSetupFirstMfa{m: mfaSetup{c: c, route: routeMLogin, wireKey: "setup_first_mfa", permit: rec.Permit}}, nil
	case stageNewMfaOrLogin:
		return &MigrateMfaOrLogin{m: mfaSetup{c: c, route: routeMLogin, wireKey: "new_mfa", permit: rec.Permit}, alreadySetup: rec.AlreadySetup}, nil
	case stageVerifyOtpSetup:
		if rec.CurrentMfa == nil {
			return nil, fmt.Errorf("mlogin: %s record lacks current_mfa", rec.Stage)
		}
		return &MigrateVerifyOtpSetup{m: mfaSetup{c: c, route: routeMLogin, wireKey: "new_mfa", permit: rec.Permit}, kind: *rec.CurrentMfa, alreadySetup: rec.AlreadySetup}, nil
	case stageVerifyTotpSetup:
		return &MigrateVerifyTotpSetup{m: mfaSetup{c: c, route: routeMLogin, wireKey: "new_mfa", permit: rec.Permit}, alreadySetup: rec.AlreadySetup}, nil
	default:
		return nil, unknownStage("mlogin", rec.Stage)
	}
}

// Delete flow.

const (
	stageConfirmPassword = "ConfirmPassword"
	stageConfirmDeletion = "ConfirmDeletion"
)

type deleteRecord struct {
	Stage  string `json:"stage"`
	Permit string `json:"permit"`
	Token  *Token `json:"token"`
}

// DeleteState is any serializable delete-flow state.
type DeleteState interface {
	Stage() string
	Serialize() ([]byte, error)
}

func (s *ConfirmPassword) Stage() string { return stageConfirmPassword }

func (s *ConfirmPassword) Serialize() ([]byte, error) {
	return s.c.sealState(deleteRecord{Stage: stageConfirmPassword, Permit: s.permit, Token: s.token})
}

func (s *ConfirmDeletion) Stage() string { return stageConfirmDeletion }

func (s *ConfirmDeletion) Serialize() ([]byte, error) {
	return s.c.sealState(deleteRecord{Stage: stageConfirmDeletion, Permit: s.permit, Token: s.token})
}

// ResumeDelete reconstitutes a delete state from a serialized record.
func (c *Client) ResumeDelete(blob []byte) (DeleteState, error) {
	var rec deleteRecord
	if err := c.openState(blob, &rec); err != nil {
		return nil, err
	}
	switch rec.Stage {
	case stageConfirmPassword:
		return &ConfirmPassword{c: c, permit: rec.Permit, token: rec.Token}, nil
	case stageConfirmDeletion:
		return &ConfirmDeletion{c: c, permit: rec.Permit, token: rec.Token}, nil
	default:
		return nil, unknownStage("delete", rec.Stage)
	}
}

// MFA-update flow.

const (
	stageStartUpdate     = "StartUpdate"
	stageCheckOtp        = "CheckOtp"
	stageCheckTotp       = "CheckTotp"
	stageDecide          = "Decide"
	stageFinalizeRemoval = "FinalizeRemoval"
	stageEnsureOtpSetup  = "EnsureOtpSetup"
	stageEnsureTotpSetup = "EnsureTotpSetup"
	stageFinalizeUpdate  = "FinalizeUpdate"
)

type updateMfaRecord struct {
	Stage  string          `json:"stage"`
	Permit string          `json:"permit"`
	OldMfa []types.MfaKind `json:"old_mfa,omitempty"`
	Kind   types.MfaKind   `json:"kind,omitempty"`
}

// UpdateMfaState is any serializable MFA-update state.
type UpdateMfaState interface {
	Stage() string
	Serialize() ([]byte, error)
}

func (s *StartUpdate) Stage() string { return stageStartUpdate }

func (s *StartUpdate) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageStartUpdate, Permit: s.permit, OldMfa: s.oldMfa})
}

func (s *CheckOtp) Stage() string { return stageCheckOtp }

func (s *CheckOtp) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageCheckOtp, Permit: s.permit, OldMfa: s.oldMfa, Kind: s.kind})
}

func (s *CheckTotp) Stage() string { return stageCheckTotp }

func (s *CheckTotp) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageCheckTotp, Permit: s.permit, OldMfa: s.oldMfa})
}

func (s *Decide) Stage() string { return stageDecide }

func (s *Decide) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageDecide, Permit: s.permit, OldMfa: s.oldMfa})
}

func (s *FinalizeRemoval) Stage() string { return stageFinalizeRemoval }

func (s *FinalizeRemoval) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageFinalizeRemoval, Permit: s.permit, OldMfa: s.oldMfa})
}

func (s *EnsureOtpSetup) Stage() string { return stageEnsureOtpSetup }

func (s *EnsureOtpSetup) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageEnsureOtpSetup, Permit: s.permit, OldMfa: s.oldMfa, Kind: s.kind})
}

func (s *EnsureTotpSetup) Stage() string { return stageEnsureTotpSetup }

// Serialize drops the provisioning URI: a resumed verification is always
// the bare-retry shape.
func (s *EnsureTotpSetup) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageEnsureTotpSetup, Permit: s.permit, OldMfa: s.oldMfa})
}

func (s *FinalizeUpdate) Stage() string { return stageFinalizeUpdate }

func (s *FinalizeUpdate) Serialize() ([]byte, error) {
	return s.c.sealState(updateMfaRecord{Stage: stageFinalizeUpdate, Permit: s.permit, OldMfa: s.oldMfa})
}

// ResumeUpdateMfa reconstitutes an MFA-update state from a serialized
// record.
func (c *Client) ResumeUpdateMfa(blob []byte) (UpdateMfaState, error) {
	var rec updateMfaRecord
	if err := c.openState(blob, &rec); err != nil {
		return nil, err
	}
	switch rec.Stage {
	case stageStartUpdate:
		return &StartUpdate{c: c, permit: rec.Permit, oldMfa: rec.OldMfa}, nil
	case stageCheckOtp:
		return &CheckOtp{c: c, permit: rec.Permit, oldMfa: rec.OldMfa, kind: rec.Kind}, nil
	case stageCheckTotp:
		return &CheckTotp{c: c, permit: rec.Permit, oldMfa: rec.OldMfa}, nil
	case stageDecide:
		return &Decide{c: c, permit: rec.Permit, oldMfa: rec.OldMfa}, nil
	case stageFinalizeRemoval:
		return &FinalizeRemoval{c: c, permit: rec.Permit, oldMfa: rec.OldMfa}, nil
	case stageEnsureOtpSetup:
		return &EnsureOtpSetup{c: c, permit: rec.Permit, oldMfa: rec.OldMfa, kind: rec.Kind}, nil
	case stageEnsureTotpSetup:
		return &EnsureTotpSetup{c: c, permit: rec.Permit, oldMfa: rec.OldMfa}, nil
	case stageFinalizeUpdate:
		return &FinalizeUpdate{c: c, permit: rec.Permit, oldMfa: rec.OldMfa}, nil
	default:
		return nil, unknownStage("upMfa", rec.Stage)
	}
}

// Ticket flow.

const (
	stageVerifiedTicket   = "VerifiedTicket"
	stageResetPassword    = "ResetPassword"
	stageSetupMfa         = "SetupMfa"
	stageCompleteRecovery = "CompleteRecovery"
)

type ticketRecord struct {
	Stage     string            `json:"stage"`
	Permit    string            `json:"permit"`
	Operation RecoveryOperation `json:"operation"`
}

// TicketState is any serializable ticket-recovery state. MFA-verification
// intermediates resume at the SetupMfa stage; enrollment can be
// re-initiated because nothing mutates before completion.
type TicketState interface {
	Stage() string
	Serialize() ([]byte, error)
}

func (s *VerifiedTicket) Stage() string { return stageVerifiedTicket }

func (s *VerifiedTicket) Serialize() ([]byte, error) {
	return s.c.sealState(ticketRecord{Stage: stageVerifiedTicket, Permit: s.permit, Operation: s.op})
}

func (s *ResetPasswordStep) Stage() string { return stageResetPassword }

func (s *ResetPasswordStep) Serialize() ([]byte, error) {
	return s.c.sealState(ticketRecord{Stage: stageResetPassword, Permit: s.permit, Operation: s.op})
}

func (s *RecoverySetupMfa) Stage() string { return stageSetupMfa }

func (s *RecoverySetupMfa) Serialize() ([]byte, error) {
	return s.m.c.sealState(ticketRecord{Stage: stageSetupMfa, Permit: s.m.permit, Operation: s.op})
}

func (s *CompleteRecovery) Stage() string { return stageCompleteRecovery }

func (s *CompleteRecovery) Serialize() ([]byte, error) {
	return s.c.sealState(ticketRecord{Stage: stageCompleteRecovery, Permit: s.permit, Operation: s.op})
}

// ResumeTicket reconstitutes a ticket-recovery state from a serialized
// record.
func (c *Client) ResumeTicket(blob []byte) (TicketState, error) {
	var rec ticketRecord
	if err := c.openState(blob, &rec); err != nil {
		return nil, err
	}
	switch rec.Stage {
	case stageVerifiedTicket:
		return &VerifiedTicket{c: c, permit: rec.Permit, op: rec.Operation}, nil
	case stageResetPassword:
		return &ResetPasswordStep{c: c, permit: rec.Permit, op: rec.Operation}, nil
	case stageSetupMfa:
		return &RecoverySetupMfa{m: mfaSetup{c: c, route: routeRecover, wireKey: "setup_recovery_mfa", permit: rec.Permit}, op: rec.Operation}, nil
	case stageCompleteRecovery:
		return &CompleteRecovery{c: c, permit: rec.Permit, op: rec.Operation}, nil
	default:
		return nil, unknownStage("recover", rec.Stage)
	}
}
