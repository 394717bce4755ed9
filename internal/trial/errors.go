package trial

import (
	"errors"
	"fmt"
)

var ErrConsistencyViolation = errors.New("consistency violation")

// ConsistencyViolationError reports a final counter value that differs from
// Threads*Iterations with the direction's sign.
type ConsistencyViolationError struct {
	Actual   int64
	Expected int64
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("%d != %d", e.Actual, e.Expected)
}

func (e *ConsistencyViolationError) Is(target error) bool {
	return target == ErrConsistencyViolation
}
