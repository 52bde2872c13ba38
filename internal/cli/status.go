package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/client"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue status, or one task's status with --task-id",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("task-id", "t", "", "task ID to get status for")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c := client.New(viper.GetString("server_url"))

	taskID, _ := cmd.Flags().GetString("task-id")
	if taskID != "" {
		task, err := c.TaskStatus(cmd.Context(), taskID)
		if err != nil {
			return err
		}
		printTask(task)
		return nil
	}

	status, err := c.QueueStatus(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Queue Size: %d\n", status.QueueSize)
	fmt.Printf("Worker Running: %s\n", yesNo(status.WorkerRunning))
	fmt.Printf("Total Completed Tasks: %d\n", status.TotalCompleted)

	if len(status.ActiveTasks) > 0 {
		fmt.Println("\nCurrently Running:")
		for _, task := range status.ActiveTasks {
			fmt.Printf("  Task ID: %s\n", task.TaskID)
			fmt.Printf("  Script: %s\n", task.ScriptPath)
			if task.StartedAt != nil {
				fmt.Printf("  Started At: %s\n", task.StartedAt.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Println()
		}
	}
	return nil
}

func printTask(task *domain.TaskView) {
	fmt.Printf("Task ID: %s\n", task.TaskID)
	fmt.Printf("Script: %s\n", task.ScriptPath)
	fmt.Printf("Status: %s\n", task.Status)

	if !task.Status.IsTerminal() {
		return
	}
	if task.Result != nil {
		fmt.Printf("Exit Code: %d\n", task.Result.ExitCode)
		if task.Result.OutputFile != "" {
			fmt.Printf("Output File: %s\n", task.Result.OutputFile)
		}
	}
	if task.ExecutionTime != nil {
		fmt.Printf("Execution Time: %.2f seconds\n", *task.ExecutionTime)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
