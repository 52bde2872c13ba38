package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/domain"
)

func TestDisabledNotifierIsSilent(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Enabled: false}, nil)

	assert.NoError(t, n.QueueLow(1))
	assert.NoError(t, n.TaskFailed(domain.Result{TaskID: "t"}))
	assert.NoError(t, n.TaskAborted(domain.TaskView{TaskID: "t"}))
}

func TestSendFailsWhenUnreachable(t *testing.T) {
	// Port 1 on localhost refuses connections, so delivery errors surface.
	n := NewEmailNotifier(EmailConfig{
		Enabled:    true,
		Host:       "127.0.0.1",
		Port:       1,
		From:       "queue@example.com",
		Recipients: []string{"ops@example.com"},
	}, nil)

	err := n.QueueLow(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp send")
}

func TestBuildMIME(t *testing.T) {
	msg := string(buildMIME(
		"queue@example.com",
		[]string{"a@example.com", "b@example.com"},
		"[Shell Queue Manager] Task Failed - t1",
		"body text",
	))

	assert.True(t, strings.HasPrefix(msg, "From: queue@example.com\r\n"))
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: [Shell Queue Manager] Task Failed - t1\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n")

	// Headers and body are separated by a blank line.
	head, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.NotContains(t, body, "\r\nSubject:")
	assert.Contains(t, head, "MIME-Version: 1.0")
	assert.Equal(t, "body text", body)
}
