package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/veriloft/vmusic/internal/providers/vk"
)

// Kind classifies a failed search
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindAuthExpired
	KindDomain
	KindNotFound
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthExpired:
		return "auth_expired"
	case KindDomain:
		return "domain"
	case KindNotFound:
		return "not_found"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is the error half of an Outcome
type Error struct {
	Kind    Kind
	Code    int    // API error code, zero unless Kind is KindDomain or KindAuthExpired
	Message string // API error message, passed through unchanged
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == 0 && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrAuthExpired = &Error{Kind: KindAuthExpired}
	ErrDomain      = &Error{Kind: KindDomain}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrUnexpected  = &Error{Kind: KindUnexpected}
)

// UserMessage is the text shown in the error panel
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Network error. Check your connection and try again"
	case KindAuthExpired:
		return "Access token expired. It is being refreshed, try again in a moment"
	case KindNotFound:
		return "Nothing found"
	case KindDomain:
		return "Error: " + e.Message
	default:
		return "Something went wrong while reading the results"
	}
}

// Classify maps an error from the search client into the taxonomy
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *vk.APIError
	var itemErr *vk.ItemError
	switch {
	case errors.As(err, &apiErr) && apiErr.AuthFailed():
		return &Error{Kind: KindAuthExpired, Code: apiErr.Code, Message: apiErr.Message, Err: err}
	case errors.As(err, &apiErr):
		return &Error{Kind: KindDomain, Code: apiErr.Code, Message: apiErr.Message, Err: err}
	case errors.Is(err, vk.ErrNotFound):
		return &Error{Kind: KindNotFound, Err: err}
	case errors.As(err, &itemErr):
		return &Error{Kind: KindUnexpected, Err: err}
	case errors.Is(err, vk.ErrTransport), errors.Is(err, vk.ErrMalformed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindNetwork, Err: err}
	default:
		return &Error{Kind: KindUnexpected, Err: err}
	}
}
