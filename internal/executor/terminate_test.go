package executor

import (
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminate_FailedSignalDoesNotMarkKilled(t *testing.T) {
	// A process that already exited and was reaped: the group is gone, so
	// the signal must fail and the run must keep its natural classification.
	cmd := exec.Command(shell, "-c", "exit 0")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())

	e := &Executor{cmd: cmd}
	err := e.Terminate()
	require.Error(t, err)
	assert.False(t, e.killed, "a failed signal must not classify the run as killed")
}
