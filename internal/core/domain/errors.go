package domain

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrActiveSessionExists = errors.New("creator already has an active session")
	ErrVersionConflict     = errors.New("session was modified concurrently")
	ErrVideoNotFound       = errors.New("video not found")
	ErrUpstreamUnavailable = errors.New("upstream video provider unavailable")
)
