package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/lib/client/types"
)

var signupCmd = &cobra.Command{
	Use:   "signup <username>",
	Short: "signup registers a new account with a password and at least one MFA method",
	RunE:  signupRun,
}

func init() {
	RootCmd.AddCommand(signupCmd)
}

func signupRun(cmd *cobra.Command, args []string) error {
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

	start, err := c.Signup().Start(ctx, username)
	if err != nil {
		return err
	}
	if _, taken := start.ErrValue(); taken {
		return fmt.Errorf("username %s is already registered", username)
	}

	password, err := promptPassword("Choose a password")
	if err != nil {
		return err
	}
	setupMfa, err := start.Unwrap().Set(ctx, password)
	if err != nil {
		return err
	}

	kind, err := promptMfaKind("First MFA method")
	if err != nil {
		return err
	}

	finalize, err := signupEnroll(ctx, setupMfa, kind)
	if err != nil {
		return err
	}

	token, err := finalize.Finish(ctx)
	if err != nil {
		return err
	}
	if err := storeToken(cache, username, token); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Account %s created and logged in.\n", username)
	return nil
}

func signupEnroll(ctx context.Context, setup *client.SignupSetupFirstMfa, kind types.MfaKind) (*client.SignupMfaOrFinalize, error) {
	if kind == types.MfaTotp {
		verify, err := setup.Totp(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Scan this in your authenticator app:\n  %s\n", verify.ProvisioningURI())
		return signupVerifyTotp(ctx, verify)
	}

	contact, err := prompt(contactLabel(kind), false)
	if err != nil {
		return nil, err
	}
	var verify *client.SignupVerifyOtpSetup
	if kind == types.MfaSms {
		verify, err = setup.Sms(ctx, contact)
	} else {
		verify, err = setup.Email(ctx, contact)
	}
	if err != nil {
		return nil, err
	}
	return signupVerifyOtp(ctx, verify)
}

func signupVerifyOtp(ctx context.Context, verify *client.SignupVerifyOtpSetup) (*client.SignupMfaOrFinalize, error) {
	for {
		otp, err := promptOtp("Code")
		if err != nil {
			return nil, err
		}
		r, err := verify.Guess(ctx, otp)
		if err != nil {
			return nil, err
		}
		if next, ok := r.Value(); ok {
			return next, nil
		}
		verify, _ = r.ErrValue()
		fmt.Fprintln(os.Stderr, "Wrong code, try again.")
	}
}

func signupVerifyTotp(ctx context.Context, verify *client.SignupVerifyTotpSetup) (*client.SignupMfaOrFinalize, error) {
	for {
		code, err := promptTotp("Authenticator code")
		if err != nil {
			return nil, err
		}
		r, err := verify.Guess(ctx, code)
		if err != nil {
			return nil, err
		}
		if next, ok := r.Value(); ok {
			return next, nil
		}
		verify, _ = r.ErrValue()
		fmt.Fprintln(os.Stderr, "Wrong code, try again.")
	}
}

func contactLabel(kind types.MfaKind) string {
	if kind == types.MfaSms {
		return "Phone number"
	}
	return "Email address"
}
