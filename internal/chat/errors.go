// Package chat implements the message synchronization engine: session
// acquisition, paginated history loading, outbound dispatch, live update
// merging, the reconciliation fallback, and the feedback overlay. This file
// centralizes the engine-level error values.
package chat

import "errors"

var (
	// ErrEmptyMessage is returned when a send is attempted with a blank body.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned by operations invoked after Close.
	ErrClosed = errors.New("engine is closed")

	// ErrInvalidFeedback is returned when a rating value is outside the
	// allowed set (like, dislike).
	ErrInvalidFeedback = errors.New(`feedback must be "like" or "dislike"`)
)
