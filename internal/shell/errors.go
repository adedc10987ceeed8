package shell

import "fmt"

// SpawnError reports that a command could not be started at all. Command
// failures (non-zero exits) are not errors; they come back in Result.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
