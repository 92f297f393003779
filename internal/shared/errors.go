package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrEnvFile       = fmt.Errorf("failed to load env file")

	// Daemon lifecycle errors
	ErrAlreadyRunning = fmt.Errorf("daemon already running")
	ErrNotRunning     = fmt.Errorf("daemon not running")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
