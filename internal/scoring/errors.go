package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// PartialFailure reports categories whose batch call failed. Their scores
// are present as unavailable placeholders.
type PartialFailure struct {
	Failed []string
	Errs   []error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("scoring failed for %d categories (%s): %v",
		len(e.Failed), strings.Join(e.Failed, ", "), errors.Join(e.Errs...))
}

func (e *PartialFailure) Unwrap() []error { return e.Errs }
