package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/client"
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort a task by ID, or all tasks for a script path",
	RunE:  runAbort,
}

func init() {
	abortCmd.Flags().StringP("task-id", "t", "", "task ID to abort")
	abortCmd.Flags().StringP("script", "s", "", "abort all tasks for this script path")
	abortCmd.MarkFlagsMutuallyExclusive("task-id", "script")
	abortCmd.MarkFlagsOneRequired("task-id", "script")
}

func runAbort(cmd *cobra.Command, _ []string) error {
	c := client.New(viper.GetString("server_url"))

	if taskID, _ := cmd.Flags().GetString("task-id"); taskID != "" {
		resp, err := c.Abort(cmd.Context(), taskID)
		if err != nil {
			return err
		}
		fmt.Println(resp.Message)
		return nil
	}

	script, _ := cmd.Flags().GetString("script")
	scriptPath, err := filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}

	resp, err := c.AbortByPath(cmd.Context(), scriptPath)
	if err != nil {
		return err
	}

	fmt.Printf("Running task aborted: %s\n", yesNo(resp.RunningAborted))
	fmt.Printf("Queued tasks aborted: %d\n", resp.QueuedAborted)
	return nil
}
