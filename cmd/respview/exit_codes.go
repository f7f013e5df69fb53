package main

import (
	"errors"

	"github.com/odvcencio/respview/pkg/browser"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	// exitUsage covers bad flags and unknown commands.
	exitUsage = 2
	// exitConfig covers unreadable or invalid config and preset files.
	exitConfig = 3
	// exitBrowser means no rendering host could be launched or reached.
	exitBrowser = 4
)

// cliError attaches an exit code to a command failure.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return withExitCode(err, exitUsage)
}

func configError(err error) error {
	return withExitCode(err, exitConfig)
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCodeForError maps a command failure to the process exit code. Errors
// without an explicit code that report a missing browser still exit with
// exitBrowser.
func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	var coded *cliError
	if errors.As(err, &coded) && coded.code != exitOK {
		return coded.code
	}
	if errors.Is(err, browser.ErrUnavailable) {
		return exitBrowser
	}
	return exitFailure
}
