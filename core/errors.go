package core

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotExist is returned when an addressed item does not exist.
	// Re-exported from io/fs so providers can return the stdlib sentinel.
	ErrNotExist = fs.ErrNotExist

	// ErrExist is returned when creating an item without overwrite
	// permission on an occupied name.
	ErrExist = fs.ErrExist

	// ErrClosed is returned when an operation is performed on a closed
	// storage or stream.
	ErrClosed = fs.ErrClosed

	// ErrStorageNotFound is returned when a path addresses a storage that
	// does not exist. Matches ErrNotExist via errors.Is.
	ErrStorageNotFound = fmt.Errorf("storage not found: %w", fs.ErrNotExist)

	// ErrStreamNotFound is returned when a path addresses a stream that
	// does not exist. Matches ErrNotExist via errors.Is.
	ErrStreamNotFound = fmt.Errorf("stream not found: %w", fs.ErrNotExist)

	// ErrInvalidArgument is returned for empty or unparseable paths, nil
	// required arguments, and unsupported open-mode/access combinations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported is returned when an operation is not supported by the
	// backing provider, e.g. seeking a non-seekable stream or writing into
	// a read-only archive mount.
	ErrUnsupported = errors.New("operation not supported")
)

// IsNotFound reports whether err indicates an absent storage or stream.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// pathError wraps err in a *fs.PathError for the given operation and path.
func pathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &fs.PathError{Op: op, Path: path, Err: err}
}
