package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibbin/vibbin/configs"
	"github.com/vibbin/vibbin/internal/dal"
	"github.com/vibbin/vibbin/internal/db"
)

var addFriendCmd = &cobra.Command{
	Use:   "add-friend <username> <username>",
	Short: "Make two accounts friends, so they can call each other",
	Args:  cobra.ExactArgs(2),
	RunE:  addFriend,
}

func init() {
	rootCmd.AddCommand(addFriendCmd)
}

func addFriend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn := db.GetDB(configs.DatabasePath())

	var ids [2]string
	for i, username := range args {
		user, err := dal.GetUserByUsername(ctx, conn, username)
		if errors.Is(err, dal.ErrUserNotFound) {
			return fmt.Errorf("no user named %q", username)
		}
		if err != nil {
			return fmt.Errorf("error looking up %s: %w", username, err)
		}
		ids[i] = user.Id.String()
	}

	if err := dal.AddFriend(ctx, conn, ids[0], ids[1]); err != nil {
		return fmt.Errorf("error adding friend: %w", err)
	}
	cmd.Printf("%s and %s are now friends\n", args[0], args[1])
	return nil
}
