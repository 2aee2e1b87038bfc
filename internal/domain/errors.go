package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means no reversible holding area exists on this platform.
	ErrUnsupported = errors.New("reversible removal is not supported on this platform")

	// ErrManifestMissing means the bundle has no Info.plist.
	ErrManifestMissing = errors.New("bundle manifest missing")

	// ErrManifestMalformed means Info.plist exists but could not be parsed.
	ErrManifestMalformed = errors.New("bundle manifest malformed")
)

// ReadErrorKind distinguishes manifest failures.
type ReadErrorKind int

const (
	ReadMissing ReadErrorKind = iota
	ReadMalformed
)

// ReadError is returned by BundleReader implementations.
type ReadError struct {
	Kind ReadErrorKind
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	switch e.Kind {
	case ReadMissing:
		return fmt.Sprintf("read %s: %v", e.Path, ErrManifestMissing)
	default:
		return fmt.Sprintf("read %s: %v: %v", e.Path, ErrManifestMalformed, e.Err)
	}
}

// Is lets errors.Is match the kind sentinels.
func (e *ReadError) Is(target error) bool {
	switch e.Kind {
	case ReadMissing:
		return target == ErrManifestMissing
	case ReadMalformed:
		return target == ErrManifestMalformed
	}
	return false
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
