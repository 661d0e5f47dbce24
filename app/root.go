// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dirgate",
	Short: "dirgate is an authentication gateway for directory and federated identity sources",
	Long: `dirgate is an authentication gateway that verifies credentials against
LDAP directories (embedded or external) and federated OIDC providers, and
exposes the result over a small web API.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
