package sandbox

import "errors"

var (
	// ErrOutsideRoot is returned when a path resolves outside the sandbox root
	ErrOutsideRoot = errors.New("path is outside the sandbox root")

	// ErrNotFound is returned when a target path does not exist
	ErrNotFound = errors.New("path not found")

	// ErrNotDirectory is returned when a directory was expected
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotRegularFile is returned when a regular file was expected
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrNotScript is returned when a file does not carry the accepted script extension
	ErrNotScript = errors.New("not an accepted script file")

	// ErrEmptyCommand is returned when an execute request has no command
	ErrEmptyCommand = errors.New("command is required")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be > 0)")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")
)
