package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibbin/vibbin/configs"
	"github.com/vibbin/vibbin/internal/crypto"
	"github.com/vibbin/vibbin/internal/dal"
	"github.com/vibbin/vibbin/internal/db"
	"github.com/vibbin/vibbin/internal/validation"
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Add an account to the server's database",
	Long:  "Add an account to the server's database. A random password is generated when --password is omitted.",
	Args:  cobra.NoArgs,
	RunE:  createUser,
}

func init() {
	rootCmd.AddCommand(createUserCmd)

	createUserCmd.Flags().String("username", "", "login name")
	createUserCmd.Flags().String("name", "", "display name")
	createUserCmd.Flags().String("password", "", "password (generated if empty)")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("name")
}

func createUser(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")

	generated := password == ""
	if generated {
		password = crypto.GeneratePassword()
	}
	if err := validation.CheckNewUser(username, name, password); err != nil {
		return err
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	id, err := dal.CreateUser(context.Background(), db.GetDB(configs.DatabasePath()), username, name, hashed)
	if errors.Is(err, dal.ErrUserExists) {
		return fmt.Errorf("username %q is taken", username)
	}
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}

	cmd.Printf("created user %s (%s)\n", username, id)
	if generated {
		cmd.Printf("password: %s\n", password)
	}
	return nil
}
