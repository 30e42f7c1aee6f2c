package core

import (
	"fmt"
)

// StageError wraps the failure of one pipeline stage. The document is left
// exactly as it was before the stage started.
type StageError struct {
	Stage    Stage
	Attempts int
	Cause    error
}

func (e *StageError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("stage %s failed after %d attempts: %v", e.Stage, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
