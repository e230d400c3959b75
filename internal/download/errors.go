package download

import "errors"

var (
	// ErrNotFound is returned when a download record is not in the database.
	ErrNotFound = errors.New("download not found")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrClientUnavailable is returned when a download client cannot be reached.
	ErrClientUnavailable = errors.New("download client unavailable")

	// ErrInvalidAPIKey is returned when the client rejects our credentials.
	ErrInvalidAPIKey = errors.New("invalid api key")

	// ErrTaskNotFound is returned when the client no longer knows the task.
	ErrTaskNotFound = errors.New("task not found in client")

	// ErrUnknownClient is returned when no client is registered for a tag.
	ErrUnknownClient = errors.New("unknown download client")
)
