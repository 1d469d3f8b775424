package generic

import "errors"

var (
	// ErrInvalidDate is returned when a string is not a calendar date.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

	// ErrInvalidWindow is returned when a window is empty or ends before it starts.
	ErrInvalidWindow = errors.New("invalid window: end before start")
)
