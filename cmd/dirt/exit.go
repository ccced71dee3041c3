package main

import (
	"errors"
	"fmt"
	"time"

	dirt "go-dirt"
	"go-dirt/config"
	"go-dirt/console"
)

// Exit codes follow sysexits.h where one fits.
const (
	exitFailure  = 1
	exitTempFail = 75 // EX_TEMPFAIL: lease held or stale, try again later
	exitConfig   = 78 // EX_CONFIG
)

// retryCooldown is the shortest wait suggested to a denied session.
const retryCooldown = 5 * time.Second

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// classify turns a command error into the message and exit code the
// operator sees. synced reports whether the canonical replica was replaced.
func classify(err error, synced bool) error {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var denied *dirt.DeniedError
	if errors.As(err, &denied) {
		return deniedExit(denied)
	}

	switch {
	case errors.Is(err, config.ErrInvalid):
		return &ExitError{Code: exitConfig, Message: "configuration error", Err: err}
	case synced:
		return &ExitError{Code: exitFailure, Message: "changes were saved but the lease could not be released; run 'dirt lock release' once no other session is active", Err: err}
	case errors.Is(err, dirt.ErrReplicaNotFound):
		return &ExitError{Code: exitFailure, Message: "no database found, run 'dirt init' first", Err: err}
	case errors.Is(err, console.ErrAborted):
		return &ExitError{Code: exitFailure, Message: "aborted, nothing was changed"}
	default:
		return &ExitError{Code: exitFailure, Message: "operation failed, nothing was changed", Err: err}
	}
}

func deniedExit(denied *dirt.DeniedError) *ExitError {
	var status = denied.Status
	if status != nil && status.Stale {
		return &ExitError{
			Code: exitTempFail,
			Message: fmt.Sprintf("the lease on %s held by %s is %s old, past its %s ttl, and looks abandoned; re-run with --clear-stale to remove it",
				denied.Key, status.Lease.Holder, status.Age.Round(time.Second), status.TTL),
		}
	}

	var wait = retryCooldown
	if remaining := status.Remaining(); remaining > wait {
		wait = remaining
	}
	return &ExitError{
		Code:    exitTempFail,
		Message: fmt.Sprintf("database is locked by another session, retry in about %s", wait.Round(time.Second)),
	}
}
