package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// WaitOptions tunes WaitForTask polling.
type WaitOptions struct {
	Timeout     time.Duration
	Interval    time.Duration
	MaxInterval time.Duration
}

// DefaultWaitOptions waits up to a minute, polling from 50ms up to 1s.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:     60 * time.Second,
		Interval:    50 * time.Millisecond,
		MaxInterval: time.Second,
	}
}

// WaitForTask polls until the task is terminal. Exceeding the timeout
// returns the last seen task and an error matching ErrTaskTimeout; the task
// itself keeps running in the engine.
func WaitForTask(ctx context.Context, e Engine, taskUID int64, opts WaitOptions) (Task, error) {
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}
	if opts.MaxInterval < opts.Interval {
		opts.MaxInterval = opts.Interval
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	interval := opts.Interval
	var last Task
	for {
		task, err := e.GetTask(waitCtx, taskUID)
		if err == nil {
			last = task
			if task.Status.Terminal() {
				return task, nil
			}
		} else if waitCtx.Err() == nil {
			return last, err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, errors.New(errors.ErrCodeTaskTimeout,
				fmt.Sprintf("task %d not finished after %s", taskUID, opts.Timeout), waitCtx.Err()).
				WithDetail("task_uid", fmt.Sprint(taskUID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}
}

// TaskFailure converts a failed task into an error, or nil when it succeeded.
func TaskFailure(task Task) error {
	if task.Status != TaskFailed && task.Status != TaskCanceled {
		return nil
	}
	msg := fmt.Sprintf("task %d %s", task.UID, task.Status)
	code := errors.ErrCodeTaskFailed
	if task.Error != nil {
		msg = fmt.Sprintf("%s: %s", msg, task.Error.Message)
		switch task.Error.Code {
		case CodeIndexAlreadyExists:
			code = errors.ErrCodeIndexConflict
		case CodeIndexNotFound:
			code = errors.ErrCodeIndexNotFound
		}
	}
	return errors.New(code, msg, nil).WithDetail("task_uid", fmt.Sprint(task.UID))
}
