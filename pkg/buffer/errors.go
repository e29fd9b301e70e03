package buffer

import "errors"

var (
	// ErrPacketNotFound is returned when a sequence number is not in the history.
	ErrPacketNotFound = errors.New("packet not found in cache")
)
