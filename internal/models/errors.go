package models

import (
	"errors"
	"net/http"
)

var (
	ErrTripNotFound       = errors.New("trip not found")
	ErrInvalidState       = errors.New("trip is not in a valid state for this operation")
	ErrInvalidOTP         = errors.New("invalid start code")
	ErrNotAuthorized      = errors.New("not authorized for this trip")
	ErrRouteUnavailable   = errors.New("route unavailable")
	ErrInvalidSample      = errors.New("invalid location sample")
	ErrLocationUnresolved = errors.New("location could not be resolved")
)

const (
	CodeTripNotFound       = "TRIP_NOT_FOUND"
	CodeInvalidState       = "INVALID_STATE"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeRouteUnavailable   = "ROUTE_UNAVAILABLE"
	CodeInvalidSample      = "INVALID_SAMPLE"
	CodeLocationUnresolved = "LOCATION_UNRESOLVED"
	CodeInternal           = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{ErrTripNotFound, CodeTripNotFound, http.StatusNotFound},
	{ErrInvalidState, CodeInvalidState, http.StatusConflict},
	{ErrInvalidOTP, CodeInvalidOTP, http.StatusBadRequest},
	{ErrNotAuthorized, CodeNotAuthorized, http.StatusForbidden},
	{ErrRouteUnavailable, CodeRouteUnavailable, http.StatusServiceUnavailable},
	{ErrInvalidSample, CodeInvalidSample, http.StatusBadRequest},
	{ErrLocationUnresolved, CodeLocationUnresolved, http.StatusUnprocessableEntity},
}

// ErrorCode maps a domain error (possibly wrapped) to its wire code.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternal
}

// HTTPStatus maps a domain error (possibly wrapped) to an HTTP status.
func HTTPStatus(err error) int {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
