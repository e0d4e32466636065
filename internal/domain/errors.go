package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedMessage = errors.New("malformed message")
	ErrStaleSession     = errors.New("stale session")
	ErrUnknownSide      = errors.New("unknown side")
	ErrWSDisconnect     = errors.New("websocket disconnected")
	ErrOrderRejected    = errors.New("order rejected")
)
