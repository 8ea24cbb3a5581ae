package governance

import (
	"errors"
	"fmt"
)

// UnavailableError means a system did not answer within the retry budget.
// Nodes record it in state instead of failing the run.
type UnavailableError struct {
	System   string
	Attempts int
	Err      error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("governance system %s unavailable after %d attempts: %v", e.System, e.Attempts, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}

// ContractError means a system answered with something the client cannot
// accept. It is never retried.
type ContractError struct {
	System  string
	Message string
}

func (e ContractError) Error() string {
	return fmt.Sprintf("governance system %s contract violation: %s", e.System, e.Message)
}

func IsUnavailable(err error) bool {
	var ue UnavailableError
	return errors.As(err, &ue)
}

func IsContractError(err error) bool {
	var ce ContractError
	return errors.As(err, &ce)
}
