package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleHappyPath(t *testing.T) {
	tk := &Task{Status: StatusPending}
	require.NoError(t, Transition(tk, StatusQueued))
	require.NoError(t, Transition(tk, StatusRunning))
	require.NoError(t, Transition(tk, StatusSuccess))
	assert.True(t, IsTerminal(tk.Status))
}

func TestCancelledIsTerminalSink(t *testing.T) {
	tk := &Task{Status: StatusQueued}
	require.NoError(t, Transition(tk, StatusCancelled))
	err := Transition(tk, StatusRunning)
	assert.Error(t, err)
	var illegal *ErrIllegalTransition
	assert.ErrorAs(t, err, &illegal)
	assert.Equal(t, StatusCancelled, tk.Status)
}

func TestRetryLoopsToQueued(t *testing.T) {
	tk := &Task{Status: StatusRunning}
	require.NoError(t, Transition(tk, StatusRetry))
	require.NoError(t, Transition(tk, StatusQueued))
}

func TestDLQRetryGoesToQueued(t *testing.T) {
	tk := &Task{Status: StatusDLQ}
	require.NoError(t, Transition(tk, StatusQueued))
}

func TestRunningExhaustedRetryGoesToDLQ(t *testing.T) {
	tk := &Task{Status: StatusRunning}
	require.NoError(t, Transition(tk, StatusDLQ))
}

func TestIllegalTransitionFromTerminal(t *testing.T) {
	tk := &Task{Status: StatusSuccess}
	assert.Error(t, Transition(tk, StatusRunning))
}
