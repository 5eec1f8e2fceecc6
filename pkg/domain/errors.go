package domain

import "errors"

// ErrSessionNotFound is returned when no live session carries the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// ErrRegistryExists is returned when the process-wide registry is created twice.
var ErrRegistryExists = errors.New("session registry already created")

// ErrNoRegistry is returned when the process-wide registry is used before creation
// or destroyed twice.
var ErrNoRegistry = errors.New("session registry not created")

// ErrRegistryNotEmpty is returned when the registry is destroyed while sessions are
// still registered. Owners must remove their sessions first.
var ErrRegistryNotEmpty = errors.New("session registry still has live sessions")
