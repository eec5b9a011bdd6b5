package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibbin/vibbin/internal/signaling"
)

var callCmd = &cobra.Command{
	Use:   "call <friend-username>",
	Short: "Call a friend and stay in the call until either side hangs up",
	Args:  cobra.ExactArgs(1),
	RunE:  placeCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func placeCall(_ *cobra.Command, args []string) error {
	// parent context for all other contexts to be derived from
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(sigCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	friend, err := findFriend(sigCtx, s.http, args[0])
	if err != nil {
		return err
	}
	switch {
	case !friend.IsOnline:
		logrus.Warnf("%s appears to be offline", friend.Username)
	case friend.InCall:
		logrus.Warnf("%s is in another call", friend.Username)
	}

	readErr := s.listen(context.WithoutCancel(sigCtx))
	info := &signaling.UserInfo{
		ID:             friend.Id,
		Name:           friend.Name,
		Username:       friend.Username,
		ProfilePicture: friend.ProfilePicture,
	}
	if err = s.machine.StartCall(friend.Id, info); err != nil {
		return err
	}
	return s.follow(sigCtx, readErr, nil)
}
