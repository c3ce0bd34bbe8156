package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trainbox/trainbox/pkg/client"
	"github.com/trainbox/trainbox/pkg/types"
)

var runShowHeartbeats bool

var runCmd = &cobra.Command{
	Use:   "run <script> [args...]",
	Short: "Execute a training script remotely and stream its output",
	Long: `Execute a script on the trainbox server and stream output live.
Press Ctrl-C to request cancellation; the server stops the script gracefully
before the command returns.

Example: tbx run training_scripts/train.py --epochs 50`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		c := client.NewClient(baseURL)
		req := types.ExecuteRequest{
			ScriptPath: args[0],
			Args:       args[1:],
		}

		err := c.ExecuteScript(ctx, req, func(line string) {
			if !runShowHeartbeats && strings.HasPrefix(line, "HEARTBEAT:") {
				return
			}
			fmt.Println(line)
		})
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runShowHeartbeats, "heartbeats", false, "also print keepalive messages")
	rootCmd.AddCommand(runCmd)
}
