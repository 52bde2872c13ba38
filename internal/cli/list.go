package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/client"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntP("limit", "n", 10, "maximum number of tasks to show")
}

func runList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	c := client.New(viper.GetString("server_url"))
	resp, err := c.RecentTasks(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(resp.Tasks) == 0 {
		fmt.Println("No recent tasks found.")
		return nil
	}

	fmt.Printf("Recent Tasks (Total: %d):\n\n", resp.Count)
	for _, task := range resp.Tasks {
		fmt.Printf("Task ID: %s\n", task.TaskID)
		fmt.Printf("Script: %s\n", task.ScriptPath)
		fmt.Printf("Status: %s\n", task.Status)
		fmt.Printf("Created: %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if task.CompletedAt != nil {
			fmt.Printf("Completed: %s\n", task.CompletedAt.Local().Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("Completed: N/A")
		}
		if task.Status.IsTerminal() && task.Result != nil {
			fmt.Printf("Exit Code: %d\n", task.Result.ExitCode)
		}
		fmt.Println()
	}
	return nil
}
