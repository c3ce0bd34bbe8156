package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainbox/trainbox/pkg/client"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List trained model files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := client.NewClient(baseURL)
		models, err := c.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}

		if len(models) == 0 {
			fmt.Println("No models found")
			return nil
		}
		for _, m := range models {
			report := ""
			if m.HasReport {
				report = "  [report]"
			}
			fmt.Printf("%s  %s  P=%.3f R=%.3f mAP50=%.3f mAP50-95=%.3f%s\n",
				time.Unix(m.LastModified, 0).Format("2006-01-02 15:04"),
				m.Path, m.Precision, m.Recall, m.MAP50, m.MAP5095, report)
		}
		return nil
	},
}

var modelDeleteCmd = &cobra.Command{
	Use:   "model-delete <name>",
	Short: "Delete a trained model and its related files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := client.NewClient(baseURL)
		if err := c.DeleteModel(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete model: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(modelDeleteCmd)
}
