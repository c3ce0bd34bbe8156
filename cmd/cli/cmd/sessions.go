package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainbox/trainbox/pkg/client"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active execution sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := client.NewClient(baseURL)
		resp, err := c.ActiveProcesses(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if resp.Count == 0 {
			fmt.Println("No active sessions")
			return nil
		}
		for id, info := range resp.ActiveProcesses {
			code := "-"
			if info.ReturnCode != nil {
				code = fmt.Sprintf("%d", *info.ReturnCode)
			}
			fmt.Printf("%s  pid=%d  status=%s  exit=%s\n", id, info.PID, info.Status, code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
