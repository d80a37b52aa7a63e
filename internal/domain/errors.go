package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrUnknownToken = errors.New("unknown token")
	ErrUnknownSide  = errors.New("unknown side")
	ErrNoEvents     = errors.New("no usable event definitions")
)
