package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyTaskName     = errors.New("task name cannot be empty")
	ErrTaskAlreadyExists = errors.New("task already exists")
	ErrMissingDependency = errors.New("missing dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")
	ErrUnknownTask       = errors.New("unknown task")
)

// CycleError reports a dependency cycle. Path starts and ends with the same task.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// TaskError is the failure of a single task.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// PanicError is a recovered panic raised by a task's Run function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
