package aem

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindProtocol Kind = iota
	KindConfiguration
	KindConflict
	KindProvisioning
	KindNotFound
	KindSearch
	KindTransport
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindConflict:
		return "ProvisioningConflict"
	case KindProvisioning:
		return "ProvisioningError"
	case KindNotFound:
		return "NotFound"
	case KindSearch:
		return "SearchError"
	case KindTransport:
		return "TransportError"
	case KindValidation:
		return "ValidationError"
	default:
		return "ProtocolError"
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrProtocol      = errors.New("protocol error")
	ErrConfiguration = errors.New("configuration error")
	ErrConflict      = errors.New("conflict")
	ErrProvisioning  = errors.New("provisioning error")
	ErrNotFound      = errors.New("not found")
	ErrSearch        = errors.New("search error")
	ErrTransport     = errors.New("transport error")
	ErrValidation    = errors.New("validation error")
)

var kindSentinels = map[Kind]error{
	KindProtocol:      ErrProtocol,
	KindConfiguration: ErrConfiguration,
	KindConflict:      ErrConflict,
	KindProvisioning:  ErrProvisioning,
	KindNotFound:      ErrNotFound,
	KindSearch:        ErrSearch,
	KindTransport:     ErrTransport,
	KindValidation:    ErrValidation,
}

// Error is the domain error returned by every remote call wrapper.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Errorf builds an Error of kind k with a formatted message.
func Errorf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap re-tags err with kind k and a message prefix. The status of an
// underlying *Error is preserved.
func Wrap(k Kind, msg string, err error) *Error {
	out := &Error{Kind: k, Message: fmt.Sprintf("%s: %v", msg, err), Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		out.Status = inner.Status
	}
	return out
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindProtocol, false
}

// StatusOf reports the HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
