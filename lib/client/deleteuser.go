package client

import (
	"context"

	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/lib/result"
)

// DeleteFailureReason identifies why a deletion step was refused.
type DeleteFailureReason string

const (
	DeleteInvalidUsername   DeleteFailureReason = "InvalidUsername"
	DeleteIncorrectPassword DeleteFailureReason = "IncorrectPassword"
	DeleteNotConfirmed      DeleteFailureReason = "NotConfirmed"
)

// DeleteFailure is an expected deletion failure. NewToken replaces the
// consumed session token and keeps the user logged in; it must be used
// for every subsequent request.
type DeleteFailure struct {
	Reason   DeleteFailureReason
	NewToken *Token
}

// DeleteFlow schedules account deletion. Every step consumes the session
// token. Every failure returns a replacement, so a mistake never logs the
// user out; every success returns one too, except the final Confirm, after
// which all sessions are dead.
type DeleteFlow struct {
	c *Client
}

// DeleteUser starts a new deletion flow.
func (c *Client) DeleteUser() *DeleteFlow {
	return &DeleteFlow{c: c}
}

type askDeleteArgs struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type askDeleteRet struct {
	Confirm         *Token `json:"ask_delete"`
	InvalidUsername *Token `json:"invalid_username"`
}

// Ask opens the deletion flow. The username must match the account the
// token belongs to.
func (f *DeleteFlow) Ask(ctx context.Context, token *Token, username string) (result.Result[*ConfirmPassword, DeleteFailure], error) {
	var zero result.Result[*ConfirmPassword, DeleteFailure]

	args := map[string]askDeleteArgs{"ask_delete": {Token: token.takeEncoded(), Username: username}}
	ret, permit, err := f.c.call(ctx, routeDelete, args, nil)
	if err != nil {
		return zero, err
	}
	var payload askDeleteRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	switch {
	case payload.Confirm != nil && payload.InvalidUsername != nil:
		return zero, deserializationErr(errBothSlots)
	case payload.Confirm != nil:
		return result.Ok[*ConfirmPassword, DeleteFailure](&ConfirmPassword{c: f.c, permit: permit, token: payload.Confirm}), nil
	case payload.InvalidUsername != nil:
		return result.Err[*ConfirmPassword, DeleteFailure](DeleteFailure{Reason: DeleteInvalidUsername, NewToken: payload.InvalidUsername}), nil
	default:
		return zero, deserializationErr(errNoSlot)
	}
}

// ConfirmPassword awaits the account password as the second deletion
// factor.
type ConfirmPassword struct {
	c      *Client
	permit string
	token  *Token
}

type confirmPasswordArgs struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type confirmPasswordRet struct {
	Confirm           *Token `json:"confirm_password"`
	IncorrectPassword *Token `json:"incorrect_password"`
}

// Password submits the account password. A wrong password fails the flow
// but the replacement token keeps the session alive.
func (s *ConfirmPassword) Password(ctx context.Context, password types.Password) (result.Result[*ConfirmDeletion, DeleteFailure], error) {
	var zero result.Result[*ConfirmDeletion, DeleteFailure]

	args := map[string]confirmPasswordArgs{"confirm_password": {Token: s.token.takeEncoded(), Password: password.Raw()}}
	ret, permit, err := s.c.call(ctx, routeDelete, args, &s.permit)
	if err != nil {
		return zero, err
	}
	var payload confirmPasswordRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	switch {
	case payload.Confirm != nil && payload.IncorrectPassword != nil:
		return zero, deserializationErr(errBothSlots)
	case payload.Confirm != nil:
		return result.Ok[*ConfirmDeletion, DeleteFailure](&ConfirmDeletion{c: s.c, permit: permit, token: payload.Confirm}), nil
	case payload.IncorrectPassword != nil:
		return result.Err[*ConfirmDeletion, DeleteFailure](DeleteFailure{Reason: DeleteIncorrectPassword, NewToken: payload.IncorrectPassword}), nil
	default:
		return zero, deserializationErr(errNoSlot)
	}
}

// ConfirmDeletion is the final deletion gate.
type ConfirmDeletion struct {
	c      *Client
	permit string
	token  *Token
}

type confirmDeletionArgs struct {
	Token string `json:"token"`
}

type confirmDeletionRet struct {
	Scheduled    *bool  `json:"deletion_scheduled"`
	NotConfirmed *Token `json:"not_confirmed"`
}

// Confirm schedules the deletion (deferred server-side, one week by
// default). On success every session is dead and no token comes back.
func (s *ConfirmDeletion) Confirm(ctx context.Context) (result.Result[result.Unit, DeleteFailure], error) {
	var zero result.Result[result.Unit, DeleteFailure]

	args := map[string]confirmDeletionArgs{"confirm_deletion": {Token: s.token.takeEncoded()}}
	ret, _, err := s.c.call(ctx, routeDelete, args, &s.permit)
	if err != nil {
		return zero, err
	}
	var payload confirmDeletionRet
	if err := decodeRet(ret, &payload); err != nil {
		return zero, err
	}
	switch {
	case payload.Scheduled != nil && payload.NotConfirmed != nil:
		return zero, deserializationErr(errBothSlots)
	case payload.Scheduled != nil:
		return result.Ok[result.Unit, DeleteFailure](result.Unit{}), nil
	case payload.NotConfirmed != nil:
		return result.Err[result.Unit, DeleteFailure](DeleteFailure{Reason: DeleteNotConfirmed, NewToken: payload.NotConfirmed}), nil
	default:
		return zero, deserializationErr(errNoSlot)
	}
}
