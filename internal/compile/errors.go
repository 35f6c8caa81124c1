package compile

import (
	"errors"
	"fmt"
)

// ErrInvalidBody marks a task whose Code() is neither a raw fragment nor a
// well-formed sequence of argument vectors.
var ErrInvalidBody = errors.New("invalid task body")

// BodyError names the offending task.
type BodyError struct {
	Task string
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("%v: task %s", ErrInvalidBody, e.Task)
}

func (e *BodyError) Unwrap() error { return ErrInvalidBody }
