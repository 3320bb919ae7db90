package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/lib/client/types"
)

var migrateLoginCmd = &cobra.Command{
	Use:   "migrate-login <username>",
	Short: "migrate-login onboards a legacy account onto MFA and logs in",
	RunE:  migrateLoginRun,
}

func init() {
	RootCmd.AddCommand(migrateLoginCmd)
}

func migrateLoginRun(cmd *cobra.Command, args []string) error {
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

	start, err := c.MigrateLogin().Start(ctx, username, password)
	if err != nil {
		return err
	}
	if failure, failed := start.ErrValue(); failed {
		if failure == client.LoginWrongFlow {
			return fmt.Errorf("account %s already has MFA set up; use `stagegate login`", username)
		}
		return fmt.Errorf("migrate-login refused: %s", failure)
	}

	kind, err := promptMfaKind("First MFA method")
	if err != nil {
		return err
	}

	done, err := migrateEnroll(ctx, start.Unwrap(), kind)
	if err != nil {
		return err
	}

	token, err := done.Login(ctx)
	if err != nil {
		return err
	}
	if err := storeToken(cache, username, token); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Account %s migrated and logged in.\n", username)
	return nil
}

func migrateEnroll(ctx context.Context, setup *client.MigrateSetupFirstMfa, kind types.MfaKind) (*client.MigrateMfaOrLogin, error) {
	if kind == types.MfaTotp {
		verify, err := setup.Totp(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Scan this in your authenticator app:\n  %s\n", verify.ProvisioningURI())
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

	contact, err := prompt(contactLabel(kind), false)
	if err != nil {
		return nil, err
	}
	var verify *client.MigrateVerifyOtpSetup
	if kind == types.MfaSms {
		verify, err = setup.Sms(ctx, contact)
	} else {
		verify, err = setup.Email(ctx, contact)
	}
	if err != nil {
		return nil, err
	}
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
