package status

import "errors"

var (
	ErrAlreadyInitialized    = errors.New("manager: already initialized")
	ErrManagerNotInitialized = errors.New("manager: not initialized")
	ErrInvalidAuthority      = errors.New("authority: caller does not hold the required role")

	ErrInvalidCapacity       = errors.New("event: capacity must be greater than zero")
	ErrEventNotFound         = errors.New("event: event not found")
	ErrMissingAttribute      = errors.New("event: expected attribute is missing")
	ErrMalformedCapacity     = errors.New("event: capacity attribute is malformed")
	ErrMaximumTicketsReached = errors.New("event: maximum tickets reached")
	ErrMintConflict          = errors.New("event: concurrent mint conflict, retry")

	ErrTicketNotFound     = errors.New("ticket: ticket not found")
	ErrMalformedAttribute = errors.New("ticket: attribute is malformed")
	ErrNumericOverflow    = errors.New("ticket: numeric overflow")
	ErrAlreadyScanned     = errors.New("ticket: already scanned")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrManagerNotInitialized, "manager_not_initialized"},
	{ErrInvalidAuthority, "invalid_authority"},
	{ErrInvalidCapacity, "invalid_capacity"},
	{ErrEventNotFound, "event_not_found"},
	{ErrMissingAttribute, "missing_attribute"},
	{ErrMalformedCapacity, "malformed_capacity"},
	{ErrMaximumTicketsReached, "maximum_tickets_reached"},
	{ErrMintConflict, "mint_conflict"},
	{ErrTicketNotFound, "ticket_not_found"},
	{ErrMalformedAttribute, "malformed_attribute"},
	{ErrNumericOverflow, "numeric_overflow"},
	{ErrAlreadyScanned, "already_scanned"},
}

// Kind returns a stable label for err: "ok" for nil, "internal" for errors
// that are not one of the sentinels above.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsRetryable reports whether the caller may retry the same request.
// A retry re-reads all state; nothing from the failed attempt is reused.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrMintConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrManagerNotInitialized)
}
