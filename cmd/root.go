// Package cmd is the stagegate CLI: one command per identity-provider
// flow, with session tokens and in-progress flow states cached in the OS
// keyring so a flow can be continued by a later invocation.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

// Errors returned from frontend commands.
var (
	ErrTooManyArguments = errors.New("too many arguments")
	ErrTooFewArguments  = errors.New("too few arguments")
)

// global flags
var (
	host    string
	port    int
	backend string
	debug   bool
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:               "stagegate",
	Short:             "stagegate drives signup, login, recovery and MFA flows against a Stagegate identity provider",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prerun,
}

func prerun(cmd *cobra.Command, args []string) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	// Load backend from env var if not set as a flag.
	if !cmd.Flags().Lookup("backend").Changed {
		if backendFromEnv, ok := os.LookupEnv("STAGEGATE_BACKEND"); ok {
			backend = backendFromEnv
		}
	}
	return nil
}

// Execute sets the version, runs the root command and exits with status 1
// on error. This is called by main.main().
func Execute(version string) {
	RootCmd.Version = version
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		switch err {
		case ErrTooFewArguments, ErrTooManyArguments:
			RootCmd.Usage()
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&host, "host", "localhost", "identity provider host")
	RootCmd.PersistentFlags().IntVar(&port, "port", 8443, "identity provider port")
	RootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "keyring backend to use")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
