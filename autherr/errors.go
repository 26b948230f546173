// Package autherr defines the error vocabulary shared by the token
// services and the HTTP layer.
package autherr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindExpired      Kind = "expired"
	KindInvalid      Kind = "invalid"
	KindWrongPurpose Kind = "wrong_purpose"
	KindNotActive    Kind = "not_active"
	KindNotFound     Kind = "not_found"
	KindMissingClaim Kind = "missing_claim"
)

// Sentinels for errors.Is comparisons. They match any *AuthenticationError of
// the same kind.
var (
	ErrExpired      = &AuthenticationError{Kind: KindExpired}
	ErrInvalid      = &AuthenticationError{Kind: KindInvalid}
	ErrWrongPurpose = &AuthenticationError{Kind: KindWrongPurpose}
	ErrNotActive    = &AuthenticationError{Kind: KindNotActive}
	ErrNotFound     = &AuthenticationError{Kind: KindNotFound}
	ErrMissingClaim = &AuthenticationError{Kind: KindMissingClaim}

	ErrUnavailable = errors.New("session store unavailable")
)

// AuthenticationError is a terminal, security relevant rejection. The Kind is
// meant for logs and metrics and must not be shown to clients.
type AuthenticationError struct {
	Kind Kind
	Err  error
}

func New(kind Kind, err error) *AuthenticationError {
	return &AuthenticationError{Kind: kind, Err: err}
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("not authenticated (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("not authenticated (%s)", e.Kind)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func (e *AuthenticationError) Is(target error) bool {
	t, ok := target.(*AuthenticationError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// KindOf reports the authentication kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}

func IsAuthentication(err error) bool {
	_, ok := KindOf(err)
	return ok
}

// KeyLoadError is returned when the signing or verification key cannot be
// loaded. It is fatal at startup.
type KeyLoadError struct {
	Path string
	Err  error
}

func (e *KeyLoadError) Error() string {
	return fmt.Sprintf("failed to load key %s: %v", e.Path, e.Err)
}

func (e *KeyLoadError) Unwrap() error {
	return e.Err
}

// StorageError wraps an infrastructure failure from the session store after
// retries were exhausted or the failure was not retryable.
type StorageError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrUnavailable
}

func IsStorage(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
