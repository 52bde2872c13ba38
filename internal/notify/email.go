package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
	"github.com/wheresmyhair/Shell-Queue-Manager/pkg/retry"
	"github.com/wheresmyhair/Shell-Queue-Manager/pkg/telemetry"
)

const (
	sendAttempts  = 3
	sendBaseDelay = 500 * time.Millisecond
)

// EmailConfig holds SMTP connection details.
type EmailConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// EmailNotifier sends notification emails via SMTP.
type EmailNotifier struct {
	cfg    EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier creates an EmailNotifier from config.
func NewEmailNotifier(cfg EmailConfig, logger *slog.Logger) *EmailNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{cfg: cfg, logger: logger}
}

func (n *EmailNotifier) QueueLow(remaining int) error {
	subject := fmt.Sprintf("[Shell Queue Manager] Queue Running Low - %d task(s) remaining", remaining)
	body := fmt.Sprintf(`Shell Queue Manager Alert

The task queue is running low.

Details:
- Remaining Tasks: %d
- Time: %s

This is an automated notification from your Shell Queue Manager.
`, remaining, time.Now().Format("2006-01-02 15:04:05"))

	return n.send("queue_low", subject, body)
}

func (n *EmailNotifier) TaskFailed(result domain.Result) error {
	errMsg := result.Error
	if errMsg == "" {
		errMsg = "No error details available"
	}
	subject := fmt.Sprintf("[Shell Queue Manager] Task Failed - %s", result.TaskID)
	body := fmt.Sprintf(`Shell Queue Manager Alert

A task has failed execution.

Task Details:
- Task ID: %s
- Script Path: %s
- Exit Code: %d
- Time: %s

Error Information:
%s

Script Output:
%s

This is an automated notification from your Shell Queue Manager.
`, result.TaskID, result.ScriptPath, result.ExitCode,
		time.Now().Format("2006-01-02 15:04:05"), errMsg, result.Output)

	return n.send("task_failed", subject, body)
}

func (n *EmailNotifier) TaskAborted(task domain.TaskView) error {
	subject := fmt.Sprintf("[Shell Queue Manager] Task Aborted - %s", task.TaskID)
	body := fmt.Sprintf(`Shell Queue Manager Alert

A task has been aborted.

Task Details:
- Task ID: %s
- Script Path: %s
- Time: %s

This is an automated notification from your Shell Queue Manager.
`, task.TaskID, task.ScriptPath, time.Now().Format("2006-01-02 15:04:05"))

	return n.send("task_aborted", subject, body)
}

func (n *EmailNotifier) send(kind, subject, body string) error {
	if !n.cfg.Enabled {
		n.logger.Debug("email notifications disabled, skipping", slog.String("kind", kind))
		return nil
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := buildMIME(n.cfg.From, n.cfg.Recipients, subject, body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	// SMTP hiccups are common enough to be worth a couple of retries, but
	// delivery stays best-effort: the last error is reported, not fatal.
	err := retry.Do(context.Background(), retry.Config{
		MaxAttempts: sendAttempts,
		BaseDelay:   sendBaseDelay,
		OnRetry: func(attempt int, err error) {
			n.logger.Warn("email delivery failed, retrying",
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
		},
	}, func() error {
		return smtp.SendMail(addr, auth, n.cfg.From, n.cfg.Recipients, msg)
	})
	if err != nil {
		telemetry.NotificationsSent.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("smtp send %q: %w", subject, err)
	}

	telemetry.NotificationsSent.WithLabelValues(kind, "ok").Inc()
	n.logger.Info("sent email notification", slog.String("subject", subject))
	return nil
}

func buildMIME(from string, to []string, subject, body string) []byte {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, strings.Join(to, ", "), subject, body,
	)
	return []byte(msg)
}
