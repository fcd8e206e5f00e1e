// Package apperr defines the error taxonomy shared by every layer of
// Switchyard and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Wrap them with fmt.Errorf("pkg: %w: detail", ...).
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrTransaction  = errors.New("transaction failed")
	ErrDelivery     = errors.New("notification delivery failed")
)

// ErrUnauthenticated is returned when no valid caller identity is present.
// It is a flavor of ErrUnauthorized that maps to 401 instead of 403.
var ErrUnauthenticated = fmt.Errorf("%w: missing or invalid credential", ErrUnauthorized)

// Kind classifies an error for clients.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation_failed"
	KindTransaction  Kind = "transaction_failed"
	KindDelivery     Kind = "notification_delivery_failed"
	KindInternal     Kind = "internal"
)

// KindOf returns the taxonomy kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransaction):
		return KindTransaction
	case errors.Is(err, ErrDelivery):
		return KindDelivery
	}
	return KindInternal
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		if errors.Is(err, ErrUnauthenticated) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Transaction classifies an error escaping a unit of work. Domain errors pass
// through unchanged; anything else becomes ErrTransaction.
func Transaction(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransaction, err)
}

// FromStatus rebuilds a taxonomy error from an HTTP response. Used by the
// client so that a failed request can be classified the same way on both
// sides of the wire.
func FromStatus(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, message)
	}
	return fmt.Errorf("%w: %s (status %d)", ErrTransaction, message, status)
}

// Body is the JSON error envelope returned by the API.
type Body struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

// BodyOf builds the response envelope for err. Internal and transaction
// failures get a generic message so storage details stay on the server.
func BodyOf(err error) Body {
	kind := KindOf(err)
	switch kind {
	case KindInternal, KindTransaction:
		return Body{Error: "internal server error", Kind: kind}
	}
	return Body{Error: err.Error(), Kind: kind}
}
