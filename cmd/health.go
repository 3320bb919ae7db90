package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "health probes the identity provider",
	RunE:  healthRun,
}

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "probe timeout")
	RootCmd.AddCommand(healthCmd)
}

func healthRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}

	c, err := newSDKClient()
	if err != nil {
		return err
	}

	healthy, err := c.IsHealthy(context.Background(), healthTimeout)
	if err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("provider at %s:%d is not healthy", host, port)
	}
	fmt.Printf("provider at %s:%d is healthy\n", host, port)
	return nil
}
