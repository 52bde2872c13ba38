package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultConfigYAML = `# Shell Queue Manager config
# Priority: CLI flag > this file > default.

http_port:    "8080"
metrics_addr: ":9091"
log_level:    "info"       # debug | info | warn | error
server_url:   "http://127.0.0.1:8080"

max_history:         1000
queue_low_threshold: 1
notify_on_failure:   true

email_enabled:  false
email_host:     "smtp.example.com"
email_port:     587
email_username: ""
email_password: ""
email_from:     "shell-queue@example.com"
email_recipients:
  - "admin@example.com"

# otel_endpoint: "localhost:4318"  # uncomment to enable OpenTelemetry tracing
`

// newInitCmd returns an "init" subcommand that writes a default config file.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write default configuration for shellqueue.

If --config is given the file is written to that path.
Otherwise it is written to ~/.shell-queue-manager/shellqueue.yaml.
Fails if the file already exists unless --force is passed.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, ".shell-queue-manager", "shellqueue.yaml")
			}

			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			if err := os.WriteFile(dest, []byte(defaultConfigYAML), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}
