package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/lib/client/types"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "recover issues and redeems account-recovery tickets",
}

var issueTicketCmd = &cobra.Command{
	Use:   "issue <admin-username> <target-username> <mutual|full> <reason>",
	Short: "issue creates a recovery ticket for a user (admin only)",
	RunE:  issueTicketRun,
}

var redeemTicketCmd = &cobra.Command{
	Use:   "redeem <username> <reset-password|reset-mfa|reset-all>",
	Short: "redeem exchanges a recovery ticket for a password and/or MFA reset",
	RunE:  redeemTicketRun,
}

func init() {
	recoverCmd.AddCommand(issueTicketCmd)
	recoverCmd.AddCommand(redeemTicketCmd)
	RootCmd.AddCommand(recoverCmd)
}

func issueTicketRun(cmd *cobra.Command, args []string) error {
	if len(args) < 4 {
		return ErrTooFewArguments
	}
	if len(args) > 4 {
		return ErrTooManyArguments
	}
	admin, target, rawKind, reason := args[0], args[1], args[2], args[3]

	var kind client.TicketKind
	switch rawKind {
	case "mutual":
		kind = client.TicketMutual
	case "full":
		kind = client.TicketFull
	default:
		return fmt.Errorf("unknown ticket kind %q, want mutual or full", rawKind)
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
	token, err := loadToken(cache, admin)
	if err != nil {
		return err
	}

	r, err := c.Ticket().Issue(ctx, token, target, kind, reason)
	if err != nil {
		return err
	}
	if _, refused := r.ErrValue(); refused {
		return fmt.Errorf("ticket refused")
	}

	issued := r.Unwrap()
	if err := storeToken(cache, admin, issued.NewToken); err != nil {
		return err
	}

	// The ticket goes to the target user out of band; print it once.
	fmt.Fprintf(os.Stderr, "Ticket for %s (hand this to the user, it is single-use):\n", target)
	fmt.Println(issued.Ticket.Export())
	return nil
}

func redeemTicketRun(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return ErrTooFewArguments
	}
	if len(args) > 2 {
		return ErrTooManyArguments
	}
	username, rawOp := args[0], args[1]

	var op client.RecoveryOperation
	switch rawOp {
	case "reset-password":
		op = client.ResetPassword
	case "reset-mfa":
		op = client.ResetMfa
	case "reset-all":
		op = client.ResetAll
	default:
		return fmt.Errorf("unknown operation %q", rawOp)
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

	encoded, err := prompt("Recovery ticket", true)
	if err != nil {
		return err
	}
	ticket, err := client.ImportTicket(encoded)
	if err != nil {
		return err
	}

	r, err := c.Ticket().Redeem(ctx, ticket, op)
	if err != nil {
		return err
	}
	if failure, refused := r.ErrValue(); refused {
		return fmt.Errorf("ticket refused: %s", failure.Reason)
	}

	complete, err := recoverySteps(ctx, r.Unwrap())
	if err != nil {
		return err
	}
	token, err := complete.Complete(ctx)
	if err != nil {
		return err
	}
	if err := storeToken(cache, username, token); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Account recovered; %s is logged in.\n", username)
	return nil
}

func recoverySteps(ctx context.Context, verified *client.VerifiedTicket) (*client.CompleteRecovery, error) {
	switch step := verified.Proceed().(type) {
	case *client.ResetPasswordStep:
		password, err := promptPassword("New password")
		if err != nil {
			return nil, err
		}
		outcome, err := step.Set(ctx, password)
		if err != nil {
			return nil, err
		}
		if outcome.Complete != nil {
			return outcome.Complete, nil
		}
		return recoveryMfa(ctx, outcome.SetupMfa)
	case *client.RecoverySetupMfa:
		return recoveryMfa(ctx, step)
	default:
		return nil, fmt.Errorf("unexpected recovery step %T", step)
	}
}

func recoveryMfa(ctx context.Context, setup *client.RecoverySetupMfa) (*client.CompleteRecovery, error) {
	kind, err := promptMfaKind("Replacement MFA method")
	if err != nil {
		return nil, err
	}

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
			if complete, ok := r.Value(); ok {
				return complete, nil
			}
			verify, _ = r.ErrValue()
			fmt.Fprintln(os.Stderr, "Wrong code, try again.")
		}
	}

	contact, err := prompt(contactLabel(kind), false)
	if err != nil {
		return nil, err
	}
	var verify *client.RecoveryVerifyOtp
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
		if complete, ok := r.Value(); ok {
			return complete, nil
		}
		verify, _ = r.ErrValue()
		fmt.Fprintln(os.Stderr, "Wrong code, try again.")
	}
}
