package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <username>",
	Short: "check verifies the cached session token and rotates it",
	RunE:  checkRun,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

func checkRun(cmd *cobra.Command, args []string) error {
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
	token, err := loadToken(cache, username)
	if err != nil {
		return err
	}

	r, err := c.CheckToken(ctx, token)
	if err != nil {
		return err
	}
	if _, refused := r.ErrValue(); refused {
		// The cached token is dead either way.
		if err := cache.DeleteToken(host, username); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to drop cached token: %s\n", err)
		}
		return fmt.Errorf("session is not valid; log in again")
	}

	peeked := r.Unwrap()
	// The old token died on the wire; only the replacement works now.
	if err := storeToken(cache, username, peeked.NewToken); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Session for %s (user id %s) is valid.\n", username, peeked.UserID)
	return nil
}
