package elastic

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed store call.
type Kind int

const (
	KindBadGateway Kind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "bad_gateway"
	}
}

// Error is a failed store call. Status and Body hold the store's response
// verbatim when the store answered; Reason describes transport failures.
type Error struct {
	Kind   Kind
	Status int
	Body   json.RawMessage
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("store: %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("store: %s (status %d)", e.Kind, e.Status)
}

// IsKind reports whether err is a store error of the given kind.
func IsKind(err error, kind Kind) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.Kind == kind
}

func classify(status int, body []byte) *Error {
	storeErr := &Error{Kind: KindBadGateway, Status: status, Body: body}
	switch status {
	case http.StatusNotFound:
		storeErr.Kind = KindNotFound
	case http.StatusConflict:
		storeErr.Kind = KindConflict
	}
	return storeErr
}

func unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Status: http.StatusBadGateway, Reason: err.Error()}
}
