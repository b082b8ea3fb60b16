package bot

import (
	"errors"
	"fmt"
)

var (
	// ErrDirectoryNotFound is returned when a discovery root does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrDirectoryRead is returned when a discovery root cannot be listed.
	ErrDirectoryRead = errors.New("failed to read directory")

	// ErrUnboundHandler is returned when a definition names a handler that
	// no module bound in the catalog.
	ErrUnboundHandler = errors.New("handler not bound")

	// ErrUnknownEvent is returned for an event directory that names no known event kind.
	ErrUnknownEvent = errors.New("unknown event kind")

	// ErrUnknownMiddleware is returned for a middleware name with no factory.
	ErrUnknownMiddleware = errors.New("unknown middleware")

	// ErrUnknownPermission is returned for an unrecognised permission name.
	ErrUnknownPermission = errors.New("unknown permission")

	// ErrEventType is returned by handlers built with On when they receive
	// an event of another type.
	ErrEventType = errors.New("unexpected event type")

	// ErrEmojisNotLoaded is returned by Emojis lookups that need the REST
	// API before the application emojis have been loaded.
	ErrEmojisNotLoaded = errors.New("emojis not loaded")
)

// RegistrationError reports a handler file that is misplaced or malformed.
// The file is skipped; discovery continues.
type RegistrationError struct {
	Path string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %s: %v", e.Path, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
