package main

import "strconv"

// exitError carries a specific process exit code out of a command run.
// Setting silent skips the structured error line on stderr, for commands
// that have already reported the failure themselves.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.err != nil:
		return e.err.Error()
	default:
		return "exit status " + strconv.Itoa(e.code)
	}
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}
