package watchlist

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyPresent is returned by Add for a code already on the list.
	ErrAlreadyPresent = errors.New("watchlist: stock already present")

	// ErrNotFound is returned by Remove for a code not on the list.
	ErrNotFound = errors.New("watchlist: stock not found")
)

// ValidationError rejects a settings change. State is unchanged.
type ValidationError struct {
	Field Field
	Value float64
	// Range is the human readable valid range shown in chat replies.
	Range string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("watchlist: invalid %s %v: must be %s", e.Field, e.Value, e.Range)
}
