package core

import "time"

// Entry is the cached metadata describing one child of a storage node. It is
// constructed when a raw provider listing is translated, or when an item is
// created or renamed, and lives only inside the owning node's entry cache;
// cache invalidation discards entries wholesale.
type Entry struct {
	// Name is the entry's name within its parent storage.
	Name string

	// Path is the entry's full path from the root.
	Path string

	// Locator is the opaque provider-specific address of the entry.
	Locator string

	// Size is the entry's size in bytes; zero for containers.
	Size int64

	// LastWriteTime is the entry's last modification time, if known.
	LastWriteTime *time.Time

	// Attributes carries provider-specific metadata.
	Attributes Attributes

	// IsStorage reports whether the entry can be opened as a storage.
	// True for native containers and for streams promoted by virtual
	// mount detection.
	IsStorage bool

	// IsStream reports whether the entry is a leaf stream. Mutually
	// exclusive with IsStorage unless the entry is a virtual storage.
	IsStream bool

	// IsVirtualStorage reports whether the entry is a stream whose
	// extension matches a registered virtual provider factory, making it
	// mountable as a storage.
	IsVirtualStorage bool

	parent *Storage
}

// Parent returns the storage node owning this entry.
func (e *Entry) Parent() *Storage { return e.parent }

// Root returns the root of the tree this entry belongs to.
func (e *Entry) Root() *Root { return e.parent.root }

// newEntry translates a raw provider entry into a cached Entry, promoting
// streams whose extension has a registered virtual provider factory.
func (s *Storage) newEntry(pe ProviderEntry) *Entry {
	virtual := !pe.IsContainer && s.root.mountFactory(extension(pe.Name)) != nil
	return &Entry{
		Name:             pe.Name,
		Path:             JoinPath(s.path, pe.Name),
		Locator:          pe.Locator,
		Size:             pe.Size,
		LastWriteTime:    pe.LastWriteTime,
		Attributes:       pe.Attributes,
		IsStorage:        pe.IsContainer || virtual,
		IsStream:         !pe.IsContainer,
		IsVirtualStorage: virtual,
		parent:           s,
	}
}
