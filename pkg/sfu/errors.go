package sfu

import "errors"

var (
	// registry errors
	ErrInvalidTrack = errors.New("invalid track")
	ErrSSRCConflict = errors.New("ssrc already used by another track")
	// routing errors
	ErrUnresolvedRoute = errors.New("no track found for ssrc")
	// sfu errors
	ErrClosed        = errors.New("sfu is closed")
	ErrServing       = errors.New("sfu is already serving")
	ErrInvalidConfig = errors.New("invalid config")
)
