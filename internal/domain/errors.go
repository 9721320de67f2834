package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for catalog operations
var (
	// ErrTransientNetwork indicates a timeout, connection failure, or server error
	ErrTransientNetwork = errors.New("network request failed")

	// ErrParse indicates the catalog returned something we could not understand
	ErrParse = errors.New("unexpected response from catalog")

	// ErrNotFound indicates the requested title or episode does not exist
	ErrNotFound = fmt.Errorf("%w: not found", ErrParse)

	// ErrUserInput indicates an action was rejected before any work started
	ErrUserInput = errors.New("invalid input")

	// ErrEmptyKeyword indicates a search was submitted without a keyword
	ErrEmptyKeyword = fmt.Errorf("%w: enter a search keyword", ErrUserInput)

	// ErrNoActiveItem indicates an episode was selected with no title open
	ErrNoActiveItem = fmt.Errorf("%w: no title is open", ErrUserInput)

	// ErrNoEpisode indicates an episode was selected without a provider id
	ErrNoEpisode = fmt.Errorf("%w: episode has no stream", ErrUserInput)

	// ErrResolveBusy indicates an episode is already being resolved
	ErrResolveBusy = fmt.Errorf("%w: an episode is already being resolved", ErrUserInput)
)

// NetworkError wraps a transport-level failure as ErrTransientNetwork
func NetworkError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientNetwork, err)
}

// ParseError wraps a response-shape failure as ErrParse
func ParseError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrParse, err)
}

// IsTransient reports whether err is worth telling the user to retry
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Reason turns an error into the single status line shown to the user
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}
