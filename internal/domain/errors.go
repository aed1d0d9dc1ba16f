package domain

import "fmt"

// UnsupportedSportError marks a sport key outside the configured set. It is
// surfaced to callers as a client error.
type UnsupportedSportError struct {
	Sport string
}

func (e *UnsupportedSportError) Error() string {
	return fmt.Sprintf("unsupported sport: %q", e.Sport)
}

// InvalidGameError marks a structurally broken game record. The game is
// rejected and never applied.
type InvalidGameError struct {
	GameID string
	Reason string
}

func (e *InvalidGameError) Error() string {
	return fmt.Sprintf("invalid game %q: %s", e.GameID, e.Reason)
}

// InsufficientDataError means a sport had no statistics to work with. It is
// recoverable: the sport reports a zero count and the batch carries on.
type InsufficientDataError struct {
	Sport string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for sport %q", e.Sport)
}

// MissingFieldError marks a request that omitted a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}
