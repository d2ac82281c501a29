package storage

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrorKind classifies a storage failure.
type ErrorKind int

// Storage error kinds.
const (
	KindNotAvailable ErrorKind = iota
	KindNotFound
	KindSerialization
	KindEncryption
	KindIO
)

// Sentinel errors matching each ErrorKind through errors.Is.
var (
	ErrNotAvailable  = errors.New("storage not available")
	ErrNotFound      = errors.New("key not found")
	ErrSerialization = errors.New("serialization error")
	ErrEncryption    = errors.New("encryption error")
	ErrIO            = errors.New("io error")
)

// ErrIncorrectPassphrase is returned when stored secrets cannot be decrypted
// with the current vault key.
var ErrIncorrectPassphrase = errors.New("incorrect password or corrupt configuration")

var kindSentinels = map[ErrorKind]error{
	KindNotAvailable:  ErrNotAvailable,
	KindNotFound:      ErrNotFound,
	KindSerialization: ErrSerialization,
	KindEncryption:    ErrEncryption,
	KindIO:            ErrIO,
}

var kindErrdefs = map[ErrorKind]error{
	KindNotAvailable:  errdefs.ErrUnavailable,
	KindNotFound:      errdefs.ErrNotFound,
	KindSerialization: errdefs.ErrDataLoss,
	KindEncryption:    errdefs.ErrPermissionDenied,
	KindIO:            errdefs.ErrUnknown,
}

// Error is returned by adapters and the Service.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func newError(kind ErrorKind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}

// Error renders the failure with its key and cause.
func (e *Error) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.Key != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Key)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Unwrap exposes the cause and the matching errdefs class.
func (e *Error) Unwrap() []error {
	errs := []error{kindErrdefs[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}
