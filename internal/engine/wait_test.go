package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskEngine reports a task as processing until polls reaches doneAfter.
type taskEngine struct {
	Engine
	polls     atomic.Int32
	doneAfter int32
	final     TaskStatus
}

func (e *taskEngine) GetTask(_ context.Context, uid int64) (Task, error) {
	n := e.polls.Add(1)
	if e.doneAfter > 0 && n >= e.doneAfter {
		return Task{UID: uid, Status: e.final}, nil
	}
	return Task{UID: uid, Status: TaskProcessing}, nil
}

func TestWaitForTask_ReturnsTerminalTask(t *testing.T) {
	e := &taskEngine{doneAfter: 3, final: TaskSucceeded}

	task, err := WaitForTask(context.Background(), e, 7, WaitOptions{Timeout: time.Second, Interval: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, TaskSucceeded, task.Status)
	assert.Equal(t, int64(7), task.UID)
}

func TestWaitForTask_TimesOut(t *testing.T) {
	// Given: a task that never finishes
	e := &taskEngine{}

	// When: waiting with a short bound
	task, err := WaitForTask(context.Background(), e, 9, WaitOptions{Timeout: 20 * time.Millisecond, Interval: time.Millisecond})

	// Then: the wait is abandoned with a timeout error
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.Equal(t, TaskProcessing, task.Status)
}

func TestTaskFailure(t *testing.T) {
	assert.NoError(t, TaskFailure(Task{Status: TaskSucceeded}))

	err := TaskFailure(Task{UID: 1, Status: TaskFailed, Error: &TaskError{Code: CodeIndexAlreadyExists, Message: "exists"}})
	assert.ErrorIs(t, err, ErrIndexExists)

	err = TaskFailure(Task{UID: 2, Status: TaskFailed})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIndexExists)
}
