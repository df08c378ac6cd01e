package filter

import (
	"errors"
	"fmt"
)

// ErrContractViolation matches any ContractViolationError via errors.Is.
var ErrContractViolation = errors.New("filter contract violation")

// ContractViolationError reports a filter that returned without suspending.
// It is a bug in the filter, not a request failure.
type ContractViolationError struct {
	Filter string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("filter %q: filter must suspend at least once", e.Filter)
}

func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}
