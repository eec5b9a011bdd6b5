package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibbin/vibbin/internal/client/call"
)

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Wait for a call from a friend and answer it",
	Args:  cobra.NoArgs,
	RunE:  answerCall,
}

func init() {
	rootCmd.AddCommand(answerCmd)
	answerCmd.Flags().Bool("auto", false, "accept the first incoming call without asking")
}

func answerCall(cmd *cobra.Command, _ []string) error {
	auto, _ := cmd.Flags().GetBool("auto")

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(sigCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	readErr := s.listen(context.WithoutCancel(sigCtx))
	fmt.Println("waiting for calls...")

	onRinging := func(call.Snapshot) {
		if auto {
			if err := s.machine.AcceptCall(); err != nil {
				logrus.Errorf("error accepting call: %v", err)
			}
			return
		}
		go promptAnswer(s.machine)
	}
	return s.follow(sigCtx, readErr, onRinging)
}

// promptAnswer asks on stdin whether to take the ringing call. The ring may time out first,
// in which case the answer no longer applies.
func promptAnswer(m *call.Machine) {
	fmt.Print("accept? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return
	}

	if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
		err = m.AcceptCall()
	} else {
		err = m.RejectCall()
	}
	if err != nil {
		fmt.Printf("too late: %v\n", err)
	}
}
