package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/lib/client/types"
	"github.com/stagegate/stagegate-go/statecache"
)

var updateMfaCmd = &cobra.Command{
	Use:   "update-mfa <username> <remove|set> <totp|sms|email>",
	Short: "update-mfa removes or replaces one of the account's MFA methods",
	RunE:  updateMfaRun,
}

func init() {
	RootCmd.AddCommand(updateMfaCmd)
}

func updateMfaRun(cmd *cobra.Command, args []string) error {
	if len(args) < 3 {
		return ErrTooFewArguments
	}
	if len(args) > 3 {
		return ErrTooManyArguments
	}
	username, action := args[0], args[1]
	if action != "remove" && action != "set" {
		return fmt.Errorf("unknown action %q, want remove or set", action)
	}
	kind, err := types.ParseMfaKind(args[2])
	if err != nil {
		return err
	}
	ctx := context.Background()

	c, err := newSDKClient()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	token, err := loadToken(cache, username)
	if err != nil {
		return err
	}

	helloR, err := c.UpdateMfa().Hello(ctx, token)
	if err != nil {
		return err
	}
	if _, refused := helloR.ErrValue(); refused {
		return fmt.Errorf("MFA update refused")
	}
	hello := helloR.Unwrap()

	// The session rotated; keep the replacement token for finalization.
	sessionToken := hello.NewToken

	decide, err := reauthenticate(ctx, hello.State)
	if err != nil {
		return err
	}

	if action == "remove" {
		return finishRemoval(ctx, cache, username, decide, kind, sessionToken)
	}
	return finishReplacement(ctx, cache, username, decide, kind, sessionToken)
}

// reauthenticate proves the user still controls one of the configured
// methods before any change is negotiated.
func reauthenticate(ctx context.Context, state *client.StartUpdate) (*client.Decide, error) {
	kind, err := chooseKind(state.OldMfa())
	if err != nil {
		return nil, err
	}

	for {
		if kind == types.MfaTotp {
			r, err := state.Totp(ctx)
			if err != nil {
				return nil, err
			}
			check := r.Unwrap()
			code, err := promptTotp("Authenticator code")
			if err != nil {
				return nil, err
			}
			outcome, err := check.Guess(ctx, code)
			if err != nil {
				return nil, err
			}
			if decide, ok := outcome.Value(); ok {
				return decide, nil
			}
			state, _ = outcome.ErrValue()
		} else {
			r, err := state.Otp(ctx, kind)
			if err != nil {
				return nil, err
			}
			check := r.Unwrap()
			otp, err := promptOtp("Code")
			if err != nil {
				return nil, err
			}
			outcome, err := check.Guess(ctx, otp)
			if err != nil {
				return nil, err
			}
			if decide, ok := outcome.Value(); ok {
				return decide, nil
			}
			state, _ = outcome.ErrValue()
		}
		fmt.Fprintln(os.Stderr, "Wrong code, try again.")
	}
}

func finishRemoval(ctx context.Context, cache *statecache.Store, username string, decide *client.Decide, kind types.MfaKind, sessionToken *client.Token) error {
	r, err := decide.Remove(ctx, kind)
	if err != nil {
		return err
	}
	if failure, refused := r.ErrValue(); refused {
		keepSession(cache, username, sessionToken)
		return fmt.Errorf("cannot remove %s: %s", kind, failure.Reason)
	}

	final, err := r.Unwrap().Finalize(ctx, sessionToken)
	if err != nil {
		return err
	}
	return settleFinalize(cache, username, final, fmt.Sprintf("Removed %s.", kind))
}

func finishReplacement(ctx context.Context, cache *statecache.Store, username string, decide *client.Decide, kind types.MfaKind, sessionToken *client.Token) error {
	var finalize *client.FinalizeUpdate

	if kind == types.MfaTotp {
		ensure, err := decide.Totp(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Scan this in your authenticator app:\n  %s\n", ensure.ProvisioningURI())
		for {
			code, err := promptTotp("Authenticator code")
			if err != nil {
				return err
			}
			r, err := ensure.Guess(ctx, code)
			if err != nil {
				return err
			}
			if next, ok := r.Value(); ok {
				finalize = next
				break
			}
			ensure, _ = r.ErrValue()
			fmt.Fprintln(os.Stderr, "Wrong code, try again.")
		}
	} else {
		contact, err := prompt(contactLabel(kind), false)
		if err != nil {
			return err
		}
		var ensure *client.EnsureOtpSetup
		if kind == types.MfaSms {
			ensure, err = decide.Sms(ctx, contact)
		} else {
			ensure, err = decide.Email(ctx, contact)
		}
		if err != nil {
			return err
		}
		for {
			otp, err := promptOtp("Code")
			if err != nil {
				return err
			}
			r, err := ensure.Guess(ctx, otp)
			if err != nil {
				return err
			}
			if next, ok := r.Value(); ok {
				finalize = next
				break
			}
			ensure, _ = r.ErrValue()
			fmt.Fprintln(os.Stderr, "Wrong code, try again.")
		}
	}

	final, err := finalize.Finalize(ctx, sessionToken)
	if err != nil {
		return err
	}
	return settleFinalize(cache, username, final, fmt.Sprintf("MFA method %s is set up.", kind))
}

// settleFinalize caches whichever token the finalization handed back; the
// user stays logged in on both branches.
func settleFinalize(cache *statecache.Store, username string, final interface {
	Value() (*client.Token, bool)
	ErrValue() (client.UpdateMfaFailure, bool)
}, success string) error {
	if token, ok := final.Value(); ok {
		if err := storeToken(cache, username, token); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, success)
		return nil
	}
	failure, _ := final.ErrValue()
	keepSession(cache, username, failure.NewToken)
	return fmt.Errorf("MFA update was not committed; your session is still cached")
}
