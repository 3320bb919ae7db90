package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <username>",
	Short: "revoke invalidates every session of the user",
	RunE:  revokeRun,
}

func init() {
	RootCmd.AddCommand(revokeCmd)
}

func revokeRun(cmd *cobra.Command, args []string) error {
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

	r, err := c.RevokeTokens(ctx, token)
	if err != nil {
		return err
	}
	if replacement, failed := r.ErrValue(); failed {
		// A failed revocation may hand back a replacement for a retry.
		if replacement != nil {
			keepSession(cache, username, replacement)
			return fmt.Errorf("revocation failed; a replacement token was cached for a retry")
		}
		return fmt.Errorf("revocation failed")
	}

	if err := cache.DeleteToken(host, username); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to drop cached token: %s\n", err)
	}
	fmt.Fprintf(os.Stderr, "All sessions for %s are revoked.\n", username)
	return nil
}
