package specmatic

import (
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/EmmanuelMendoza/specmatic/result"
)

// ErrEmptyContract is returned when a lookup runs against a feature with no
// scenarios.
var ErrEmptyContract = errors.New("The contract is empty.")

// PathNotRecognizedError means no scenario got past method and path matching.
type PathNotRecognizedError struct {
	Request HTTPRequest
}

func (e *PathNotRecognizedError) Error() string { return pathNotRecognizedMessage(e.Request) }

func pathNotRecognizedMessage(req HTTPRequest) string {
	if action, ok := req.Header(HeaderSOAPAction); ok {
		return fmt.Sprintf("SOAP request not recognized; path=%s, SOAPAction=%s", req.Path, action)
	}
	return fmt.Sprintf("Request not recognized; method=%s, path=%s", req.Method, req.Path)
}

// MismatchError carries the first specific failure found while looking up a
// scenario.
type MismatchError struct {
	Failure *result.Failure
}

func (e *MismatchError) Error() string { return e.Failure.Report().Text() }

// AmbiguousMatchError is returned when a lookup that must be unique finds
// several scenarios.
type AmbiguousMatchError struct {
	Names []string
}

func (e *AmbiguousMatchError) Error() string {
	return "More than one scenario matched: " + strings.Join(e.Names, ", ")
}

// NoMatchingScenarioError aggregates the specific failures of every scenario
// a stub was checked against.
type NoMatchingScenarioError struct {
	Report string
}

func (e *NoMatchingScenarioError) Error() string { return e.Report }
