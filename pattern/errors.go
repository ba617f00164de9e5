package pattern

import (
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/result"
)

// ContractError reports malformed contract input: a value that cannot be
// parsed as its declared type, a bad token, or an invalid example.
type ContractError struct {
	Message     string
	Breadcrumbs []string
}

// NewContractError formats a ContractError.
func NewContractError(format string, args ...any) *ContractError {
	if len(args) == 0 {
		return &ContractError{Message: format}
	}
	return &ContractError{Message: fmt.Sprintf(format, args...)}
}

func (e *ContractError) Error() string {
	if len(e.Breadcrumbs) == 0 {
		return e.Message
	}
	return ">> " + strings.Join(e.Breadcrumbs, ".") + "\n\n" + e.Message
}

// WithBreadcrumb returns a copy of e located under key.
func (e *ContractError) WithBreadcrumb(key string) *ContractError {
	crumbs := make([]string, 0, len(e.Breadcrumbs)+1)
	crumbs = append(crumbs, key)
	crumbs = append(crumbs, e.Breadcrumbs...)
	return &ContractError{Message: e.Message, Breadcrumbs: crumbs}
}

// Failure converts e into a match failure carrying the same location.
func (e *ContractError) Failure() *result.Failure {
	var r result.Result = result.Fail("%s", e.Message)
	for i := len(e.Breadcrumbs) - 1; i >= 0; i-- {
		r = r.WithBreadcrumb(e.Breadcrumbs[i])
	}
	return result.AsFailure(r)
}

// UnregisteredTypeError is returned when a Deferred alias has no definition.
type UnregisteredTypeError struct {
	Alias string
}

func (e *UnregisteredTypeError) Error() string {
	return fmt.Sprintf("Type %s does not exist", e.Alias)
}

// RecursionError is returned when generating a value would never terminate:
// a required field leads back to a type already being generated, or the
// resolver's depth limit was reached.
type RecursionError struct {
	Chain []string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("Invalid recursive type: %s", strings.Join(e.Chain, " -> "))
}

// FailureFromError converts a parse or resolution error into a failure.
func FailureFromError(err error) *result.Failure {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Failure()
	}
	return result.Fail("%s", err)
}

func convertError(s, typeName string) *ContractError {
	return NewContractError("Couldn't convert %q to %s", s, typeName)
}
