package core

import (
	"io"
	"time"
)

// Stream is a byte stream handed out by a provider.
//
// Read-only backends (e.g. archive mounts) return streams whose Write
// reports ErrUnsupported. Streams handed back to a caller must be closed
// by the caller on every exit path.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// OpenMode controls how an existing or absent stream is opened.
type OpenMode int

const (
	// ModeOpen opens an existing stream and fails if it is absent.
	ModeOpen OpenMode = iota
	// ModeOpenOrCreate opens an existing stream or creates it if absent.
	ModeOpenOrCreate
	// ModeCreate creates a stream, truncating any existing content.
	ModeCreate
	// ModeCreateNew creates a stream and fails if the name is occupied.
	ModeCreateNew
	// ModeAppend opens or creates a stream with the cursor at the end.
	// Requires write-capable access.
	ModeAppend
	// ModeTruncate opens an existing stream and discards its content.
	// Requires write-capable access.
	ModeTruncate
)

// String returns a string representation of the OpenMode.
func (m OpenMode) String() string {
	switch m {
	case ModeOpen:
		return "open"
	case ModeOpenOrCreate:
		return "open-or-create"
	case ModeCreate:
		return "create"
	case ModeCreateNew:
		return "create-new"
	case ModeAppend:
		return "append"
	case ModeTruncate:
		return "truncate"
	default:
		return "unknown"
	}
}

// Access controls the I/O directions permitted on an opened stream.
type Access int

const (
	// AccessRead permits reading only.
	AccessRead Access = iota
	// AccessWrite permits writing only.
	AccessWrite
	// AccessReadWrite permits both directions.
	AccessReadWrite
)

// String returns a string representation of the Access value.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// CanWrite reports whether the access value permits writing.
func (a Access) CanWrite() bool {
	return a == AccessWrite || a == AccessReadWrite
}

// Attributes is an opaque bag of provider-specific metadata attached to an
// entry. Providers that cannot persist attributes return ErrUnsupported from
// SetAttributes, which the storage layer swallows (best-effort semantics).
type Attributes map[string]string

// ProviderEntry is one raw item of a provider listing, before the storage
// layer translates it into an Entry.
type ProviderEntry struct {
	// Name is the item's name within its container.
	Name string
	// Locator is the opaque provider-specific address of the item.
	Locator string
	// IsContainer reports whether the item is a sub-container.
	IsContainer bool
	// Size is the item's size in bytes; zero for containers.
	Size int64
	// LastWriteTime is the item's last modification time, if known.
	LastWriteTime *time.Time
	// Attributes carries provider-specific metadata.
	Attributes Attributes
}

// Provider is the pluggable backend a storage node talks to. A node owns its
// provider exclusively and disposes it on close unless the provider was lent
// by a parent that still owns the underlying handle.
//
// Providers must return an error matching fs.ErrNotExist (via errors.Is)
// when an addressed item is absent, distinguishable from other failures.
type Provider interface {
	// Name returns the provider's display name.
	Name() string

	// Locator returns the provider's root address.
	Locator() string

	// Entries returns the complete listing of the provider's container.
	// Pattern filtering is done by the storage layer; providers always
	// return the full set so the entry cache stays internally consistent.
	Entries() ([]ProviderEntry, error)

	// OpenStream opens the stream addressed by locator.
	OpenStream(locator string, mode OpenMode, access Access) (Stream, error)

	// OpenContainer opens the sub-container addressed by locator and
	// returns a provider rooted at it.
	OpenContainer(locator string) (Provider, error)

	// CreateContainer creates a sub-container with the given name and
	// returns a provider rooted at it together with its listing entry.
	CreateContainer(name string) (Provider, ProviderEntry, error)

	// CreateStream creates a stream with the given name, truncating any
	// existing content, and returns it together with its listing entry.
	CreateStream(name string) (Stream, ProviderEntry, error)

	// RemoveContainer removes the sub-container addressed by locator and
	// everything it contains.
	RemoveContainer(locator string) error

	// RemoveStream removes the stream addressed by locator.
	RemoveStream(locator string) error

	// Rename renames the item addressed by locator within its container
	// and returns the item's new locator.
	Rename(locator, newName string) (string, error)

	// SetAttributes applies attrs to the item addressed by locator.
	// Providers without attribute support return ErrUnsupported.
	SetAttributes(locator string, attrs Attributes) error

	// FreeSpace returns the number of free bytes available to the
	// provider, or ErrUnsupported when the backend cannot tell.
	FreeSpace() (int64, error)

	// Close releases the provider's resources. Close is idempotent.
	Close() error
}

// VirtualProviderFactory turns a stream's contents into a nested provider,
// mounting it transparently as a storage. Factories are registered on the
// root keyed by file extension (e.g. ".zip").
//
// Ownership of the stream passes to the returned provider; the factory must
// close the stream when provider construction fails.
type VirtualProviderFactory interface {
	CreateProvider(stream Stream, locator, name string) (Provider, error)
}
