package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/lib/client/types"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "login authenticates against the identity provider and caches the session token",
	RunE:  loginRun,
}

func init() {
	RootCmd.AddCommand(loginCmd)
}

func loginRun(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return ErrTooFewArguments
	}
	if len(args) > 1 {
		return ErrTooManyArguments
	}
	username := args[0]
	ctx := context.Background()

	c, err := newSDKClient()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}

	password, err := promptPassword("Password")
	if err != nil {
		return err
	}

	start, err := c.Login().Start(ctx, username, password)
	if err != nil {
		return err
	}
	failure, failed := start.ErrValue()
	if failed {
		return fmt.Errorf("login refused: %s", failure)
	}

	token, err := loginChallengeLoop(ctx, start.Unwrap())
	if err != nil {
		return err
	}

	if err := storeToken(cache, username, token); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged in as %s.\n", username)
	return nil
}

// loginChallengeLoop walks InitMfa -> Verify -> (RetryInitMfa on a wrong
// guess) until the provider issues a token.
func loginChallengeLoop(ctx context.Context, initMfa *client.InitMfa) (*client.Token, error) {
	kind, err := chooseKind(initMfa.Available())
	if err != nil {
		return nil, err
	}

	outcome, err := challengeInit(ctx, initMfa, kind)
	if err != nil {
		return nil, err
	}

	for {
		token, ok := outcome.Value()
		if ok {
			return token, nil
		}

		retry, _ := outcome.ErrValue()
		fmt.Fprintln(os.Stderr, "Wrong code; pick a method and try again.")
		kind, err := chooseKind(retry.Available())
		if err != nil {
			return nil, err
		}
		outcome, err = challengeRetry(ctx, retry, kind)
		if err != nil {
			return nil, err
		}
	}
}

func chooseKind(available []types.MfaKind) (types.MfaKind, error) {
	if len(available) == 1 {
		return available[0], nil
	}
	fmt.Fprintf(os.Stderr, "Available MFA methods: %v\n", available)
	for {
		kind, err := promptMfaKind("Method")
		if err != nil {
			return "", err
		}
		if types.KindIn(kind, available) {
			return kind, nil
		}
		fmt.Fprintf(os.Stderr, "%s is not available for this account\n", kind)
	}
}

func challengeInit(ctx context.Context, state *client.InitMfa, kind types.MfaKind) (loginOutcome, error) {
	if kind == types.MfaTotp {
		r, err := state.Totp(ctx)
		if err != nil {
			return loginOutcome{}, err
		}
		return guessTotp(ctx, r.Unwrap())
	}

	var verify *client.VerifyMfa
	switch kind {
	case types.MfaSms:
		r, err := state.Sms(ctx)
		if err != nil {
			return loginOutcome{}, err
		}
		verify = r.Unwrap()
	default:
		r, err := state.Email(ctx)
		if err != nil {
			return loginOutcome{}, err
		}
		verify = r.Unwrap()
	}
	return guessOtp(ctx, verify)
}

func challengeRetry(ctx context.Context, state *client.RetryInitMfa, kind types.MfaKind) (loginOutcome, error) {
	if kind == types.MfaTotp {
		r, err := state.Totp(ctx)
		if err != nil {
			return loginOutcome{}, err
		}
		return guessTotp(ctx, r.Unwrap())
	}

	var verify *client.VerifyMfa
	switch kind {
	case types.MfaSms:
		r, err := state.Sms(ctx)
		if err != nil {
			return loginOutcome{}, err
		}
		verify = r.Unwrap()
	default:
		r, err := state.Email(ctx)
		if err != nil {
			return loginOutcome{}, err
		}
		verify = r.Unwrap()
	}
	return guessOtp(ctx, verify)
}

// loginOutcome mirrors the verify transition result without generics
// noise in the prompt loop.
type loginOutcome struct {
	token *client.Token
	retry *client.RetryInitMfa
}

func (o loginOutcome) Value() (*client.Token, bool) {
	return o.token, o.token != nil
}

func (o loginOutcome) ErrValue() (*client.RetryInitMfa, bool) {
	return o.retry, o.retry != nil
}

func guessOtp(ctx context.Context, verify *client.VerifyMfa) (loginOutcome, error) {
	otp, err := promptOtp("Code")
	if err != nil {
		return loginOutcome{}, err
	}
	r, err := verify.Guess(ctx, otp)
	if err != nil {
		return loginOutcome{}, err
	}
	if token, ok := r.Value(); ok {
		return loginOutcome{token: token}, nil
	}
	retry, _ := r.ErrValue()
	return loginOutcome{retry: retry}, nil
}

func guessTotp(ctx context.Context, verify *client.VerifyTotp) (loginOutcome, error) {
	code, err := promptTotp("Authenticator code")
	if err != nil {
		return loginOutcome{}, err
	}
	r, err := verify.Guess(ctx, code)
	if err != nil {
		return loginOutcome{}, err
	}
	if token, ok := r.Value(); ok {
		return loginOutcome{token: token}, nil
	}
	retry, _ := r.ErrValue()
	return loginOutcome{retry: retry}, nil
}
