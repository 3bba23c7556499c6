package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalid            = errors.New("invalid")
	ErrConflict           = errors.New("conflict")
	ErrTooMany            = errors.New("too many requests")
	ErrInternal           = errors.New("internal")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrIndexUnavailable   = errors.New("index unavailable")
	ErrCollectionNotFound = errors.New("collection not found")
)

type wrapped struct {
	kind error
	err  error
}

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %v", w.kind, w.err)
}

func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.err}
}

// Unavailable marks err as a store failure while keeping the cause matchable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &wrapped{kind: ErrStoreUnavailable, err: err}
}

// IndexUnavailable marks err as a vector index or embedder failure.
func IndexUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIndexUnavailable) {
		return err
	}
	return &wrapped{kind: ErrIndexUnavailable, err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
