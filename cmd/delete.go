package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagegate/stagegate-go/lib/client"
	"github.com/stagegate/stagegate-go/statecache"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "delete schedules account deletion (deferred server-side)",
	RunE:  deleteRun,
}

func init() {
	RootCmd.AddCommand(deleteCmd)
}

// keepSession stores the replacement token a failed deletion step handed
// back, so the user stays logged in.
func keepSession(cache *statecache.Store, username string, token *client.Token) {
	if token == nil {
		return
	}
	if err := storeToken(cache, username, token); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to cache replacement token: %s\n", err)
	}
}

func deleteRun(cmd *cobra.Command, args []string) error {
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
	// A previous invocation may have parked the flow at the final gate.
	if blob, err := cache.GetState(host, username, "delete"); err == nil {
		resumed, err := c.ResumeDelete(blob)
		if err != nil {
			return err
		}
		if final, ok := resumed.(*client.ConfirmDeletion); ok {
			return deleteFinalGate(ctx, cache, username, final)
		}
	}

	token, err := loadToken(cache, username)
	if err != nil {
		return err
	}

	ask, err := c.DeleteUser().Ask(ctx, token, username)
	if err != nil {
		return err
	}
	if failure, failed := ask.ErrValue(); failed {
		keepSession(cache, username, failure.NewToken)
		return fmt.Errorf("deletion refused: %s", failure.Reason)
	}

	password, err := promptPassword("Confirm your password")
	if err != nil {
		return err
	}
	confirm, err := ask.Unwrap().Password(ctx, password)
	if err != nil {
		return err
	}
	if failure, failed := confirm.ErrValue(); failed {
		keepSession(cache, username, failure.NewToken)
		return fmt.Errorf("deletion refused: %s", failure.Reason)
	}

	return deleteFinalGate(ctx, cache, username, confirm.Unwrap())
}

func deleteFinalGate(ctx context.Context, cache *statecache.Store, username string, final *client.ConfirmDeletion) error {
	answer, err := prompt(fmt.Sprintf("Type %q to schedule deletion", username), false)
	if err != nil {
		return err
	}
	if answer != username {
		// Park the flow; the rotated token rides in the serialized state.
		blob, err := final.Serialize()
		if err != nil {
			return err
		}
		if err := cache.PutState(host, username, "delete", blob); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Aborted; re-run `stagegate delete` to continue.")
		return nil
	}

	outcome, err := final.Confirm(ctx)
	if err != nil {
		return err
	}
	if failure, failed := outcome.ErrValue(); failed {
		keepSession(cache, username, failure.NewToken)
		return fmt.Errorf("deletion refused: %s", failure.Reason)
	}

	// Every session is dead now; the cached state and token are useless.
	if err := cache.DeleteState(host, username, "delete"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to drop cached state: %s\n", err)
	}
	if err := cache.DeleteToken(host, username); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to drop cached token: %s\n", err)
	}
	fmt.Fprintf(os.Stderr, "Deletion of %s scheduled.\n", username)
	return nil
}
