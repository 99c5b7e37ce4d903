package atomo

import "fmt"

// FatalError wraps a storage or codec failure that the writer cannot
// recover from. The caller of DB.Run is expected to treat it as terminal:
// the state engine's single writer goroutine logs it at Fatal level
// (internal/corelog) and exits the process rather than attempt to
// continue with possibly-inconsistent state.
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return fmt.Sprintf("atomo: fatal: %v", e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }
