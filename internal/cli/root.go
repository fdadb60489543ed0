// Package cli implements the doorman command line: a server that mounts one
// door per configured provider and a few inspection commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/doorman/pkg/config"
)

var appVersion = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	appVersion = v
}

var flagEnvFiles []string

var rootCmd = &cobra.Command{
	Use:   "doorman",
	Short: "Stateless third-party login broker",
	Long: `doorman drives the OAuth 1.0a and OAuth 2.0 handshakes against third-party
identity providers and hands the normalized profile back to your application.

No server-side state is kept: every pending handshake travels in a sealed
cookie that only this process can open.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnv(flagEnvFiles...)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&flagEnvFiles, "env-file", nil, "env files to load before reading configuration")
	rootCmd.AddCommand(serveCmd, providersCmd)
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = appVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("doorman %s\n", appVersion))
	return rootCmd.Execute()
}
