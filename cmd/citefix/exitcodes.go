package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (no project, invalid config)
	ExitDataError   = 3 // Data error (integrity abort, malformed mapping, lint issues with --strict)
)
