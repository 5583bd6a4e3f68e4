package service

import "fmt"

type ErrorKind string

const (
	// ErrKindCredentialInvalid: vault decrypt failure or remote auth
	// rejection. Not retryable until the tenant reconnects the account.
	ErrKindCredentialInvalid ErrorKind = "credential_invalid"
	// ErrKindRemoteRejected: structured error from the publish surface.
	ErrKindRemoteRejected ErrorKind = "remote_rejected"
	// ErrKindRemoteUnavailable: network failure, timeout, or an opaque
	// non-JSON response. Plausibly transient, but no automatic retry here.
	ErrKindRemoteUnavailable ErrorKind = "remote_unavailable"
	// ErrKindUnimplementedBackend: posting method needs an external
	// executor this process does not ship.
	ErrKindUnimplementedBackend ErrorKind = "unimplemented_backend"
	// ErrKindInternal: a fault on our side before or after the remote
	// call (storage read, malformed local state).
	ErrKindInternal ErrorKind = "internal"
)

type PublishError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-scheduling the post could ever succeed
// without external intervention.
func (e *PublishError) Retryable() bool {
	return e.Kind == ErrKindRemoteRejected || e.Kind == ErrKindRemoteUnavailable || e.Kind == ErrKindInternal
}

func credentialInvalid(message string, err error) *PublishError {
	return &PublishError{Kind: ErrKindCredentialInvalid, Message: message, Err: err}
}

func remoteRejected(message string) *PublishError {
	return &PublishError{Kind: ErrKindRemoteRejected, Message: message}
}

func remoteUnavailable(message string, err error) *PublishError {
	return &PublishError{Kind: ErrKindRemoteUnavailable, Message: message, Err: err}
}

func internalError(message string, err error) *PublishError {
	return &PublishError{Kind: ErrKindInternal, Message: message, Err: err}
}
