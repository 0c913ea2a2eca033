package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailure is returned when the statistics API could not be reached
	// or answered with something that is not a usable response.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrUnknownEntity is returned when an entity code is not part of the
	// dimension values a query was sent with.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrNoData is returned for empty or short flat results.
	ErrNoData = errors.New("no data")
	// ErrDivisionByZero marks a rate whose denominator summed to zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrStale is returned when a newer request for the same target has
	// started while this one was in flight.
	ErrStale = errors.New("superseded by a newer request")
	// ErrNotReady is returned while startup data is still loading.
	ErrNotReady = errors.New("data is still loading")
)

type UserVisibleError struct {
	HttpCode int
	Message  string
}

func (e *UserVisibleError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.HttpCode, e.Message)
}

func NewUserVisibleError(httpCode int, message string) *UserVisibleError {
	return &UserVisibleError{
		HttpCode: httpCode,
		Message:  message,
	}
}

func WrapErrorForResponse(err error, message string) error {
	if e, ok := err.(*UserVisibleError); ok {
		return &UserVisibleError{
			HttpCode: e.HttpCode,
			Message:  fmt.Sprintf("%s: %s", message, e.Message),
		}
	}
	return err
}

// HttpCodeFor maps the error kinds above to the status the API answers with.
// Unrecognised errors map to 500.
func HttpCodeFor(err error) int {
	var uve *UserVisibleError
	switch {
	case errors.As(err, &uve):
		return uve.HttpCode
	case errors.Is(err, ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, ErrNoData), errors.Is(err, ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrFetchFailure):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrStale):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
