package cli

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch live output of the currently running task",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Float64P("interval", "i", 1.0, "refresh interval in seconds")
	watchCmd.Flags().BoolP("follow", "f", false, "keep watching across tasks until interrupted")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	interval, _ := cmd.Flags().GetFloat64("interval")
	follow, _ := cmd.Flags().GetBool("follow")

	c := client.New(viper.GetString("server_url"))
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	var lastTaskID string
	var printed int
	seenTask := false

	for {
		live, err := c.LiveOutput(cmd.Context())
		switch {
		case err == nil:
			seenTask = true
			if live.TaskID != lastTaskID {
				fmt.Printf("── Task %s (%s) ──\n", live.TaskID, live.ScriptPath)
				lastTaskID = live.TaskID
				printed = 0
			}
			// Print only the bytes that arrived since the last poll.
			if len(live.Output) > printed {
				fmt.Print(live.Output[printed:])
				printed = len(live.Output)
			}
		case isNotFound(err):
			if !follow {
				if !seenTask {
					fmt.Println("No task is currently running.")
				}
				return nil
			}
			lastTaskID = ""
			printed = 0
		default:
			return err
		}

		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

func isNotFound(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
