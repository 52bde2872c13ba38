package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/client"
)

var submitCmd = &cobra.Command{
	Use:   "submit <script-path>",
	Short: "Submit a shell script to the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().BoolP("priority", "p", false, "prioritize this task")
	submitCmd.Flags().String("task-id", "", "custom task ID (generated if not provided)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	scriptPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}
	if info, err := os.Stat(scriptPath); err != nil || info.IsDir() {
		return fmt.Errorf("script not found: %s", scriptPath)
	}

	priority, _ := cmd.Flags().GetBool("priority")
	taskID, _ := cmd.Flags().GetString("task-id")

	c := client.New(viper.GetString("server_url"))
	resp, err := c.Submit(cmd.Context(), scriptPath, priority, taskID)
	if err != nil {
		return err
	}

	fmt.Println("Task submitted successfully")
	fmt.Printf("Task ID: %s\n", resp.TaskID)
	fmt.Printf("Position in queue: %d\n", resp.Position)
	if resp.Priority {
		fmt.Println("Priority: HIGH")
	}
	return nil
}
