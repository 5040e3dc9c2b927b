package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed        = fmt.Errorf("authentication failed")
	ErrLoginCancelled    = fmt.Errorf("%w: login cancelled", ErrAuthFailed)
	ErrNotAuthenticated  = fmt.Errorf("not authenticated")
	ErrTokenExpired      = fmt.Errorf("access token expired")
	ErrTimeout           = fmt.Errorf("operation timed out")
	ErrConnectInProgress = fmt.Errorf("connection already in progress")
	ErrNotConnected      = fmt.Errorf("provider not connected")

	// Transport and service errors
	ErrTransport          = fmt.Errorf("transport error")
	ErrMalformedResponse  = fmt.Errorf("%w: malformed response", ErrTransport)
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnknownProvider    = fmt.Errorf("unknown provider")

	// Sync errors
	ErrEmptySource      = fmt.Errorf("source playlist is empty")
	ErrNoMatch          = fmt.Errorf("no matching track")
	ErrCancelNotAllowed = fmt.Errorf("sync can no longer be cancelled")
	ErrCancelled        = fmt.Errorf("sync cancelled")

	// Storage errors
	ErrStorageCorruption = fmt.Errorf("stored tokens are corrupt")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
