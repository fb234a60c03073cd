package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Rejected writes, nothing was applied.
	ErrValidation     = fmt.Errorf("validation failed")
	ErrMalformedEvent = fmt.Errorf("malformed event")
	ErrNotFound       = fmt.Errorf("not found")
	ErrInvalidRoomID  = fmt.Errorf("invalid room id")
	ErrUnknownParty   = fmt.Errorf("unknown party")

	// The durable table refused or failed the write. The cache was left untouched.
	ErrPersistence  = fmt.Errorf("persistence failed")
	ErrTableMissing = fmt.Errorf("table not ensured")

	// Transport side, swallowed by the registry.
	ErrSubscriberGone  = fmt.Errorf("subscriber gone")
	ErrSlowSubscriber  = fmt.Errorf("subscriber buffer full")
	ErrUnknownDriver   = fmt.Errorf("unknown storage driver")
	ErrShuttingDown    = fmt.Errorf("server shutting down")
	ErrInvalidIdentity = fmt.Errorf("invalid sql identifier")
)

// HTTPStatus maps the error taxonomy onto the status codes of the REST surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrMalformedEvent):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotFound),
		stderrors.Is(err, ErrInvalidRoomID),
		stderrors.Is(err, ErrUnknownParty):
		return http.StatusNotFound
	case stderrors.Is(err, ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message a client is allowed to see.
// Anything that is not a client mistake collapses into a generic message.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusNotFound:
		return "not found"
	default:
		return "internal error"
	}
}
