package process

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a RunError
type ErrorKind int

const (
	// Spawn means the process never started (binary missing, not executable)
	Spawn ErrorKind = iota + 1
	// Timeout means the process was killed after running past its deadline
	Timeout
	// ExitFailure means the process ran and exited non-zero
	ExitFailure
	// Canceled means the caller's context ended before the process did
	Canceled
)

// Sentinels matched by errors.Is against a *RunError of that kind
var (
	ErrSpawn       = errors.New("failed to start command")
	ErrTimeout     = errors.New("command timed out")
	ErrExitFailure = errors.New("command exited non-zero")
	ErrCanceled    = errors.New("command canceled")
)

// RunError is returned by Runner.Run for anything but a zero exit
type RunError struct {
	Kind    ErrorKind
	Command string
	Code    int
	Stderr  string
	Timeout time.Duration
	Err     error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case Spawn:
		return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
	case Timeout:
		return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
	case ExitFailure:
		if s := firstLine(e.Stderr); s != "" {
			return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, s)
		}
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	case Canceled:
		return fmt.Sprintf("%s canceled: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	switch target {
	case ErrSpawn:
		return e.Kind == Spawn
	case ErrTimeout:
		return e.Kind == Timeout
	case ErrExitFailure:
		return e.Kind == ExitFailure
	case ErrCanceled:
		return e.Kind == Canceled
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
