package person

import "errors"

var (
	// ErrInvalidQuery is returned when a lookup is attempted without a query.
	ErrInvalidQuery = errors.New("query is required")
	// ErrMissingEmail marks a source record that cannot become a Person.
	ErrMissingEmail = errors.New("record has no email address")

	errSourceUnavailable = errors.New("source not configured")
)
