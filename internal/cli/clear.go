package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/client"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all pending tasks from the queue",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolP("force", "f", false, "don't ask for confirmation")
}

func runClear(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		fmt.Print("Are you sure you want to clear all tasks from the queue? (y/n): ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "y" {
			fmt.Println("Operation canceled.")
			return nil
		}
	}

	c := client.New(viper.GetString("server_url"))
	msg, err := c.ClearQueue(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}
