package domain

import "errors"

// Named conditions surfaced to callers of the query layer. Each needs a
// different action from the user, so they must stay distinguishable.
var (
	// ErrNoConnections is returned when no provider has a usable connection
	ErrNoConnections = errors.New("NO_CONNECTIONS")

	// ErrAuthExpired is returned when a provider rejects the access token
	ErrAuthExpired = errors.New("AUTH_EXPIRED")

	// ErrDevTokenUnauthorized is returned when the developer credential is not approved
	ErrDevTokenUnauthorized = errors.New("DEV_TOKEN_UNAUTHORIZED")
)

var (
	// ErrContractViolation marks a programming error in the caller's input
	ErrContractViolation = errors.New("input contract violation")

	// ErrSuperseded is returned to a query overtaken by a newer one
	ErrSuperseded = errors.New("query superseded by a newer request")

	// ErrInvalidRecord marks an externally supplied record that failed validation
	ErrInvalidRecord = errors.New("invalid performance record")

	// ErrUnknownProvider marks a provider id outside the supported set
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyQuestion is returned when an insight request has no question
	ErrEmptyQuestion = errors.New("question is required")

	// ErrInvalidHistory marks a malformed earlier turn of an insights conversation
	ErrInvalidHistory = errors.New("invalid conversation history")

	// ErrInsightsDisabled is returned when no analyst is configured
	ErrInsightsDisabled = errors.New("insights are not configured")
)

// ErrorCode returns the named condition carried by err, or "" when err is
// not one of them
func ErrorCode(err error) string {
	for _, named := range []error{ErrNoConnections, ErrAuthExpired, ErrDevTokenUnauthorized} {
		if errors.Is(err, named) {
			return named.Error()
		}
	}
	return ""
}
