package discovery

import (
	"errors"
	"fmt"
)

// Kind classifies the failures of Register and Retrieve.
type Kind int

const (
	// MissingAuthHeader indicates that the Authorization header was not supplied.
	MissingAuthHeader Kind = iota + 1

	// MissingDefaultServer indicates that Retrieve was called without a default server.
	MissingDefaultServer

	// InvalidAuth indicates that the central repository rejected the credentials (401).
	InvalidAuth

	// ServerUnavailable indicates a server side failure of the central repository (5xx).
	ServerUnavailable

	// CentralRepositoryMisconfigured indicates any other unexpected response.
	CentralRepositoryMisconfigured
)

func (k Kind) String() string {
	switch k {
	case MissingAuthHeader:
		return "missing authorization header"
	case MissingDefaultServer:
		return "missing default server"
	case InvalidAuth:
		return "invalid authentication"
	case ServerUnavailable:
		return "server unavailable"
	case CentralRepositoryMisconfigured:
		return "central repository misconfigured"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrMissingAuthHeader              = &Error{Kind: MissingAuthHeader}
	ErrMissingDefaultServer           = &Error{Kind: MissingDefaultServer}
	ErrInvalidAuth                    = &Error{Kind: InvalidAuth}
	ErrServerUnavailable              = &Error{Kind: ServerUnavailable}
	ErrCentralRepositoryMisconfigured = &Error{Kind: CentralRepositoryMisconfigured}
)

// Error is returned by Register and Retrieve for every failure that is not a transport or cache error.
type Error struct {
	Kind Kind
	// Status is the HTTP status code of the central repository response, 0 if no request was sent.
	Status int
	// URL is the requested record URL, empty if no request was sent.
	URL    string
	reason string
}

func newError(kind Kind, reason string) error {
	return &Error{Kind: kind, reason: reason}
}

func newStatusError(kind Kind, status int, url, reason string) error {
	return &Error{Kind: kind, Status: status, URL: url, reason: reason}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.reason != "" {
		msg = e.reason
	}
	if e.Status != 0 {
		return fmt.Sprintf("discovery: %s (status %d from %s)", msg, e.Status, e.URL)
	}
	return "discovery: " + msg
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
