package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibbin/vibbin/internal/client/transport"
	"github.com/vibbin/vibbin/internal/schemas/public"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show your most recent calls",
	Args:  cobra.NoArgs,
	RunE:  showHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func showHistory(_ *cobra.Command, _ []string) error {
	creds, err := accountCredentials()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logs, err := transport.GetCallHistory(ctx, transport.NewClient(creds))
	if err != nil {
		return fmt.Errorf("error fetching call history: %w", err)
	}
	if len(logs) == 0 {
		fmt.Println("no calls yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tWITH\tSTATUS\tDURATION")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04"),
			counterpart(l, creds.Username),
			l.Status,
			formatDuration(l.Duration),
		)
	}
	return w.Flush()
}

func counterpart(l public.CallLog, self string) string {
	if l.Caller.Username == self {
		return "to " + l.Receiver.Username
	}
	return "from " + l.Caller.Username
}

func formatDuration(seconds *int64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds) * time.Second).String()
}
