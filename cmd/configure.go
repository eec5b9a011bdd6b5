package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibbin/vibbin/configs"
	"github.com/vibbin/vibbin/internal/validation"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Save the account this client signs in with",
	Args:  cobra.NoArgs,
	RunE:  configure,
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().String("username", "", "account username")
	configureCmd.Flags().String("password", "", "account password")
	configureCmd.Flags().String("server", "", "server address, e.g. http://127.0.0.1:8080")
	_ = configureCmd.MarkFlagRequired("username")
	_ = configureCmd.MarkFlagRequired("password")
}

func configure(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	server, _ := cmd.Flags().GetString("server")

	if err := validation.CheckCredentials(username, password); err != nil {
		return err
	}
	if err := configs.PersistCredentialsToConfig(ConfigFile, username, password, server); err != nil {
		return fmt.Errorf("error writing credentials to %s: %w", ConfigFile, err)
	}
	cmd.Printf("saved credentials for %s to %s\n", username, ConfigFile)
	return nil
}
