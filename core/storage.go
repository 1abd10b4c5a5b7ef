package core

import (
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// entryKind filters entry lookups by the kind the caller is addressing.
type entryKind int

const (
	kindAny entryKind = iota
	kindStorage
	kindStream
)

// Storage is one node of the hierarchical tree: a container backed by
// exactly one Provider. Nodes cache their children's metadata (entry cache)
// and already-opened child nodes (child cache); both caches are guarded by
// the node's own lock and invalidated together on staleness.
type Storage struct {
	root      *Root
	parent    *Storage
	name      string
	path      string
	provider  Provider
	leaveOpen bool
	virtual   bool

	mu          sync.Mutex
	entries     map[string]*Entry
	children    map[string]*Storage
	lastRefresh time.Time
	closed      bool
}

// Name returns the node's name within its parent. The root's name is the
// name of its provider.
func (s *Storage) Name() string { return s.name }

// Path returns the node's full path from the root.
func (s *Storage) Path() string { return s.path }

// Parent returns the owning node, or nil for the root.
func (s *Storage) Parent() *Storage { return s.parent }

// Root returns the root of the tree this node belongs to.
func (s *Storage) Root() *Root { return s.root }

// IsVirtual reports whether this node or any ancestor was produced by
// mounting a container inside a stream. Virtual-ness is inherited
// permanently down the subtree.
func (s *Storage) IsVirtual() bool { return s.virtual }

// Provider returns the backend capability this node talks to.
func (s *Storage) Provider() Provider { return s.provider }

func (s *Storage) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// newChild wires up a child node sharing this node's root configuration.
func (s *Storage) newChild(name string, p Provider, leaveOpen, virtual bool) *Storage {
	return &Storage{
		root:      s.root,
		parent:    s,
		name:      name,
		path:      JoinPath(s.path, name),
		provider:  p,
		leaveOpen: leaveOpen,
		virtual:   s.virtual || virtual,
		children:  make(map[string]*Storage),
	}
}

// resolve splits path into the ancestor node owning the final segment and
// the segment itself, delegating to ancestors recursively. A leading
// separator restarts resolution from the root. When createParents is true,
// missing intermediate storages are created.
func (s *Storage) resolve(path string, createParents bool) (*Storage, string, error) {
	norm := NormalizePath(path)
	if strings.HasPrefix(norm, Separator) {
		return s.root.Storage.resolve(strings.TrimPrefix(norm, Separator), createParents)
	}
	if norm == "" {
		return nil, "", pathError("resolve", path, ErrInvalidArgument)
	}
	parent, leaf := SplitPath(norm)
	if parent == "" {
		return s, leaf, nil
	}
	var node *Storage
	var err error
	if createParents {
		node, err = s.OpenOrCreateStorage(parent)
	} else {
		node, err = s.OpenStorage(parent)
	}
	if err != nil {
		return nil, "", err
	}
	return node, leaf, nil
}

// --- entry cache ---

func (s *Storage) cacheValidLocked() bool {
	timeout := s.root.CacheTimeout()
	if timeout == 0 || s.entries == nil {
		return false
	}
	return s.root.now().Sub(s.lastRefresh) < timeout
}

// ensureCacheLocked refreshes the entry cache from the provider when it is
// stale, replacing it wholesale. Must be called with s.mu held.
func (s *Storage) ensureCacheLocked() error {
	if s.cacheValidLocked() {
		s.root.metrics.hit()
		return nil
	}
	s.root.metrics.miss()
	raw, err := s.provider.Entries()
	if err != nil {
		return pathError("list", s.path, err)
	}
	fresh := make(map[string]*Entry, len(raw))
	for _, pe := range raw {
		e := s.newEntry(pe)
		fresh[s.root.caseKey(e.Name)] = e
	}
	s.entries = fresh
	s.lastRefresh = s.root.now()
	s.root.metrics.refresh()
	s.root.logger.Debug("entry cache refreshed",
		zap.String("path", s.path), zap.Int("entries", len(fresh)))
	return nil
}

// invalidateLocked drops this node's entry cache (non-recursive). Must be
// called with s.mu held.
func (s *Storage) invalidateLocked() {
	s.entries = nil
	s.lastRefresh = time.Time{}
}

// invalidate drops this node's entry cache (non-recursive).
func (s *Storage) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

// checkNotFound maps a provider not-found into the requested sentinel after
// invalidating this node's cache, so the next lookup re-fetches fresh state.
// Other errors pass through wrapped. Must be called with s.mu held.
func (s *Storage) checkNotFound(op, path string, err error, sentinel error) error {
	if IsNotFound(err) {
		s.invalidateLocked()
		return pathError(op, path, sentinel)
	}
	return pathError(op, path, err)
}

func notFoundSentinel(k entryKind) error {
	switch k {
	case kindStorage:
		return ErrStorageNotFound
	case kindStream:
		return ErrStreamNotFound
	default:
		return ErrNotExist
	}
}

// entryLocked looks up a child entry by name, refreshing the cache first if
// it is stale, and filters by the requested kind. Must be called with s.mu
// held.
func (s *Storage) entryLocked(name string, k entryKind) (*Entry, error) {
	if err := s.ensureCacheLocked(); err != nil {
		return nil, err
	}
	e, ok := s.entries[s.root.caseKey(name)]
	if !ok {
		return nil, pathError("lookup", JoinPath(s.path, name), notFoundSentinel(k))
	}
	switch k {
	case kindStorage:
		if !e.IsStorage {
			return nil, pathError("lookup", e.Path, ErrStorageNotFound)
		}
	case kindStream:
		if !e.IsStream {
			return nil, pathError("lookup", e.Path, ErrStreamNotFound)
		}
	}
	return e, nil
}

// Entries lists the children matching pattern. The pattern may carry a path
// prefix; wildcards (`*`, `?`) apply to the final segment only and honor the
// root's case rule. An empty pattern lists everything.
func (s *Storage) Entries(pattern string) ([]*Entry, error) {
	norm := NormalizePath(pattern)
	if strings.HasPrefix(norm, Separator) {
		return s.root.Storage.Entries(strings.TrimPrefix(norm, Separator))
	}
	dir, leaf := SplitPath(norm)
	if dir != "" {
		// Wildcards apply to the final segment only.
		if hasWildcard(dir) {
			return nil, pathError("list", pattern, ErrInvalidArgument)
		}
		node, err := s.OpenStorage(dir)
		if err != nil {
			return nil, err
		}
		return node.Entries(leaf)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pathError("list", s.path, ErrClosed)
	}
	if err := s.ensureCacheLocked(); err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if MatchPattern(leaf, e.Name, s.root.CaseSensitive()) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Entry returns the cached metadata for the item at path, of either kind.
func (s *Storage) Entry(path string) (*Entry, error) {
	return s.entryOf(path, kindAny)
}

// StorageEntry returns the metadata for the storage at path.
func (s *Storage) StorageEntry(path string) (*Entry, error) {
	return s.entryOf(path, kindStorage)
}

// StreamEntry returns the metadata for the stream at path.
func (s *Storage) StreamEntry(path string) (*Entry, error) {
	return s.entryOf(path, kindStream)
}

func (s *Storage) entryOf(path string, k entryKind) (*Entry, error) {
	parent, leaf, err := s.resolve(path, false)
	if err != nil {
		return nil, err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.closed {
		return nil, pathError("lookup", parent.path, ErrClosed)
	}
	return parent.entryLocked(leaf, k)
}

// Exists reports whether an item of either kind exists at path.
func (s *Storage) Exists(path string) (bool, error) { return s.exists(path, kindAny) }

// StorageExists reports whether a storage exists at path.
func (s *Storage) StorageExists(path string) (bool, error) { return s.exists(path, kindStorage) }

// StreamExists reports whether a stream exists at path.
func (s *Storage) StreamExists(path string) (bool, error) { return s.exists(path, kindStream) }

func (s *Storage) exists(path string, k entryKind) (bool, error) {
	_, err := s.entryOf(path, k)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// --- child storages ---

// OpenStorage opens the storage at path, resolving each segment through the
// child-node cache and mounting virtual storages as needed. "/" addresses
// the root itself.
func (s *Storage) OpenStorage(path string) (*Storage, error) {
	norm := NormalizePath(path)
	if strings.HasPrefix(norm, Separator) {
		rest := strings.TrimPrefix(norm, Separator)
		if rest == "" {
			return s.root.Storage, nil
		}
		return s.root.Storage.OpenStorage(rest)
	}
	if norm == "" {
		return nil, pathError("open", path, ErrInvalidArgument)
	}
	node := s
	for _, seg := range strings.Split(norm, Separator) {
		child, err := node.openChild(seg)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// CreateStorage creates a storage at path, creating missing intermediate
// storages, and fails with ErrExist when the final name is occupied.
func (s *Storage) CreateStorage(path string) (*Storage, error) {
	parent, leaf, err := s.resolve(path, true)
	if err != nil {
		return nil, err
	}
	return parent.createChild(leaf, true)
}

// OpenOrCreateStorage opens the storage at path, creating it and any
// missing intermediate storages as needed.
func (s *Storage) OpenOrCreateStorage(path string) (*Storage, error) {
	norm := NormalizePath(path)
	if strings.HasPrefix(norm, Separator) {
		rest := strings.TrimPrefix(norm, Separator)
		if rest == "" {
			return s.root.Storage, nil
		}
		return s.root.Storage.OpenOrCreateStorage(rest)
	}
	if norm == "" {
		return nil, pathError("open", path, ErrInvalidArgument)
	}
	node := s
	for _, seg := range strings.Split(norm, Separator) {
		child, err := node.createChild(seg, false)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// openChild returns the child storage by single name, reusing the child
// cache when the cached node is still open.
func (s *Storage) openChild(name string) (*Storage, error) {
	if !validName(name) {
		return nil, pathError("open", JoinPath(s.path, name), ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pathError("open", s.path, ErrClosed)
	}
	key := s.root.caseKey(name)
	if child, ok := s.children[key]; ok {
		if !child.isClosed() {
			return child, nil
		}
		// Disposed nodes are evicted lazily on the next lookup.
		delete(s.children, key)
	}
	e, err := s.entryLocked(name, kindStorage)
	if err != nil {
		return nil, err
	}
	child, err := s.mountChildLocked(e)
	if err != nil {
		return nil, err
	}
	s.storeChildLocked(key, child)
	return child, nil
}

// createChild creates (or, when exclusive is false, opens) the child
// storage by single name.
func (s *Storage) createChild(name string, exclusive bool) (*Storage, error) {
	if !validName(name) {
		return nil, pathError("create", JoinPath(s.path, name), ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pathError("create", s.path, ErrClosed)
	}
	key := s.root.caseKey(name)
	if err := s.ensureCacheLocked(); err != nil {
		return nil, err
	}
	if e, ok := s.entries[key]; ok {
		if exclusive {
			return nil, pathError("create", e.Path, ErrExist)
		}
		if child, ok := s.children[key]; ok && !child.isClosed() {
			return child, nil
		}
		delete(s.children, key)
		if !e.IsStorage {
			return nil, pathError("create", e.Path, ErrExist)
		}
		child, err := s.mountChildLocked(e)
		if err != nil {
			return nil, err
		}
		s.storeChildLocked(key, child)
		return child, nil
	}
	prov, pe, err := s.provider.CreateContainer(name)
	if err != nil {
		return nil, pathError("create", JoinPath(s.path, name), err)
	}
	s.entries[key] = s.newEntry(pe)
	child := s.newChild(name, prov, false, false)
	s.storeChildLocked(key, child)
	s.root.logger.Debug("storage created", zap.String("path", child.path))
	return child, nil
}

// mountChildLocked opens e as a child node: through a virtual provider
// factory when the entry is a mountable container, natively otherwise. The
// backend variant is chosen once here and never branched on again.
func (s *Storage) mountChildLocked(e *Entry) (*Storage, error) {
	if e.IsVirtualStorage {
		factory := s.root.mountFactory(extension(e.Name))
		if factory == nil {
			return nil, pathError("mount", e.Path, ErrStorageNotFound)
		}
		stream, err := s.provider.OpenStream(e.Locator, ModeOpen, AccessRead)
		if err != nil {
			return nil, s.checkNotFound("mount", e.Path, err, ErrStorageNotFound)
		}
		// Ownership of the stream passes to the nested provider.
		prov, err := factory.CreateProvider(stream, e.Locator, e.Name)
		if err != nil {
			return nil, pathError("mount", e.Path, err)
		}
		s.root.logger.Debug("virtual storage mounted",
			zap.String("path", e.Path), zap.String("extension", extension(e.Name)))
		return s.newChild(e.Name, prov, false, true), nil
	}
	prov, err := s.provider.OpenContainer(e.Locator)
	if err != nil {
		return nil, s.checkNotFound("open", e.Path, err, ErrStorageNotFound)
	}
	return s.newChild(e.Name, prov, false, false), nil
}

// storeChildLocked registers child under key, evicting and closing any
// prior node cached under the same name.
func (s *Storage) storeChildLocked(key string, child *Storage) {
	if prev, ok := s.children[key]; ok && prev != child {
		_ = prev.Close()
		s.root.metrics.eviction()
	}
	s.children[key] = child
}

// evictChildLocked removes and closes the cached child node under name, if
// any. Must be called with s.mu held.
func (s *Storage) evictChildLocked(name string) {
	key := s.root.caseKey(name)
	if child, ok := s.children[key]; ok {
		delete(s.children, key)
		_ = child.Close()
		s.root.metrics.eviction()
	}
}

// --- streams ---

func validateMode(mode OpenMode, access Access) error {
	if (mode == ModeAppend || mode == ModeTruncate) && !access.CanWrite() {
		return ErrInvalidArgument
	}
	return nil
}

// OpenStream opens the stream at path with the given mode and access.
// Creating modes resolve missing intermediate storages; ModeOpen and
// ModeTruncate require the full path to exist.
func (s *Storage) OpenStream(path string, mode OpenMode, access Access) (Stream, error) {
	if err := validateMode(mode, access); err != nil {
		return nil, pathError("open", path, err)
	}
	switch mode {
	case ModeCreate:
		return s.CreateStream(path, true)
	case ModeCreateNew:
		return s.CreateStream(path, false)
	}
	creating := mode == ModeOpenOrCreate || mode == ModeAppend
	parent, leaf, err := s.resolve(path, creating)
	if err != nil {
		return nil, err
	}
	return parent.openLeafStream(leaf, mode, access, creating)
}

func (s *Storage) openLeafStream(name string, mode OpenMode, access Access, createIfAbsent bool) (Stream, error) {
	if !validName(name) {
		return nil, pathError("open", JoinPath(s.path, name), ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, pathError("open", s.path, ErrClosed)
	}
	e, err := s.entryLocked(name, kindStream)
	if err != nil {
		if createIfAbsent && IsNotFound(err) {
			return s.createLeafStreamLocked(name)
		}
		return nil, err
	}
	st, err := s.provider.OpenStream(e.Locator, mode, access)
	if err != nil {
		return nil, s.checkNotFound("open", e.Path, err, ErrStreamNotFound)
	}
	return &invalidatingStream{Stream: st, owner: s}, nil
}

// CreateStream creates the stream at path, creating missing intermediate
// storages. When the name is occupied and overwrite is false it fails with
// ErrExist; with overwrite the old stream is deleted first.
func (s *Storage) CreateStream(path string, overwrite bool) (Stream, error) {
	parent, leaf, err := s.resolve(path, true)
	if err != nil {
		return nil, err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.closed {
		return nil, pathError("create", parent.path, ErrClosed)
	}
	if !validName(leaf) {
		return nil, pathError("create", JoinPath(parent.path, leaf), ErrInvalidArgument)
	}
	if err := parent.ensureCacheLocked(); err != nil {
		return nil, err
	}
	key := parent.root.caseKey(leaf)
	if e, ok := parent.entries[key]; ok {
		if e.IsStorage && !e.IsVirtualStorage {
			return nil, pathError("create", e.Path, ErrExist)
		}
		if !overwrite {
			return nil, pathError("create", e.Path, ErrExist)
		}
		// Replace: evict any mounted view, drop the cached entry, then
		// remove the old stream before creating the new one.
		parent.evictChildLocked(leaf)
		delete(parent.entries, key)
		if err := parent.provider.RemoveStream(e.Locator); err != nil && !IsNotFound(err) {
			return nil, pathError("create", e.Path, err)
		}
	}
	return parent.createLeafStreamLocked(leaf)
}

// createLeafStreamLocked asks the provider for a fresh stream and registers
// the resulting entry in the cache. Must be called with s.mu held and the
// name unoccupied.
func (s *Storage) createLeafStreamLocked(name string) (Stream, error) {
	st, pe, err := s.provider.CreateStream(name)
	if err != nil {
		return nil, pathError("create", JoinPath(s.path, name), err)
	}
	if s.entries != nil {
		s.entries[s.root.caseKey(name)] = s.newEntry(pe)
	}
	return &invalidatingStream{Stream: st, owner: s}, nil
}

// DeleteStream deletes the stream at path. The cached entry and any mounted
// child node are evicted before the physical removal, so a concurrent
// reader never observes a half-deleted cached object.
func (s *Storage) DeleteStream(path string) error {
	return s.deleteItem(path, kindStream)
}

// DeleteStorage deletes the storage at path and everything it contains.
func (s *Storage) DeleteStorage(path string) error {
	return s.deleteItem(path, kindStorage)
}

func (s *Storage) deleteItem(path string, k entryKind) error {
	parent, leaf, err := s.resolve(path, false)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.closed {
		return pathError("delete", parent.path, ErrClosed)
	}
	e, err := parent.entryLocked(leaf, k)
	if err != nil {
		return err
	}
	// Cache eviction happens before the physical removal.
	parent.evictChildLocked(leaf)
	delete(parent.entries, parent.root.caseKey(leaf))

	switch {
	case k == kindStream, e.IsVirtualStorage:
		err = parent.provider.RemoveStream(e.Locator)
	default:
		err = parent.provider.RemoveContainer(e.Locator)
	}
	if err != nil {
		return parent.checkNotFound("delete", e.Path, err, notFoundSentinel(k))
	}
	return nil
}

// Rename renames the item at path to newName within its parent. The cached
// child node for the old name is evicted because descendants' locators
// become stale, then the cached entry is swapped under the new name with
// its storage-ness and virtual-mount eligibility re-evaluated.
func (s *Storage) Rename(path, newName string) error {
	if !validName(newName) {
		return pathError("rename", path, ErrInvalidArgument)
	}
	parent, leaf, err := s.resolve(path, false)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.closed {
		return pathError("rename", parent.path, ErrClosed)
	}
	e, err := parent.entryLocked(leaf, kindAny)
	if err != nil {
		return err
	}
	parent.evictChildLocked(leaf)
	newLocator, err := parent.provider.Rename(e.Locator, newName)
	if err != nil {
		return parent.checkNotFound("rename", e.Path, err, ErrNotExist)
	}
	delete(parent.entries, parent.root.caseKey(leaf))

	renamed := &Entry{
		Name:          newName,
		Path:          JoinPath(parent.path, newName),
		Locator:       newLocator,
		Size:          e.Size,
		LastWriteTime: e.LastWriteTime,
		Attributes:    e.Attributes,
		parent:        parent,
	}
	if e.IsStream {
		virtual := parent.root.mountFactory(extension(newName)) != nil
		renamed.IsStream = true
		renamed.IsVirtualStorage = virtual
		renamed.IsStorage = virtual
	} else {
		renamed.IsStorage = true
	}
	parent.entries[parent.root.caseKey(newName)] = renamed
	return nil
}

// --- copy ---

// Copy copies the item at src into dst at dstPath. A stream is copied byte
// by byte; a storage is copied recursively with bounded concurrency. When
// dstPath is empty or ends at a container boundary, the source's own name
// is appended.
func (s *Storage) Copy(src string, dst *Storage, dstPath string) error {
	if dst == nil {
		return pathError("copy", src, ErrInvalidArgument)
	}
	e, err := s.Entry(src)
	if err != nil {
		return err
	}
	target, err := dst.copyTarget(dstPath, e.Name)
	if err != nil {
		return err
	}
	if e.IsStream {
		return e.parent.copyStream(e.Name, dst, target)
	}
	return e.parent.copyStorage(e.Name, dst, target)
}

// copyTarget resolves the effective destination path, appending name when
// the destination has no file-name component or addresses an existing
// storage.
func (s *Storage) copyTarget(dstPath, name string) (string, error) {
	trailing := strings.HasSuffix(strings.ReplaceAll(dstPath, `\`, Separator), Separator)
	norm := NormalizePath(dstPath)
	if norm == "" || norm == Separator {
		if trailing || dstPath == "" {
			return norm + name, nil
		}
		return "", pathError("copy", dstPath, ErrInvalidArgument)
	}
	if trailing {
		return norm + Separator + name, nil
	}
	if ok, err := s.StorageExists(norm); err != nil {
		return "", err
	} else if ok {
		return norm + Separator + name, nil
	}
	return norm, nil
}

func (s *Storage) copyStream(name string, dst *Storage, target string) error {
	rs, err := s.OpenStream(name, ModeOpen, AccessRead)
	if err != nil {
		return err
	}
	defer func() { _ = rs.Close() }()
	ws, err := dst.CreateStream(target, true)
	if err != nil {
		return err
	}
	if _, err := io.Copy(ws, rs); err != nil {
		_ = ws.Close()
		return pathError("copy", target, err)
	}
	return ws.Close()
}

func (s *Storage) copyStorage(name string, dst *Storage, target string) error {
	srcStorage, err := s.OpenStorage(name)
	if err != nil {
		return err
	}
	dstStorage, err := dst.OpenOrCreateStorage(target)
	if err != nil {
		return err
	}
	entries, err := srcStorage.Entries("")
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(s.root.copyConcurrency())
	for _, e := range entries {
		e := e
		g.Go(func() error {
			return srcStorage.Copy(e.Name, dstStorage, e.Name)
		})
	}
	return g.Wait()
}

// --- convenience ---

// ReadFile reads the entire stream at path.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	rs, err := s.OpenStream(path, ModeOpen, AccessRead)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()
	return io.ReadAll(rs)
}

// WriteFile writes data to the stream at path, replacing any existing
// content and creating missing intermediate storages.
func (s *Storage) WriteFile(path string, data []byte) error {
	ws, err := s.CreateStream(path, true)
	if err != nil {
		return err
	}
	if _, err := ws.Write(data); err != nil {
		_ = ws.Close()
		return pathError("write", path, err)
	}
	return ws.Close()
}

// SetAttributes applies attrs to the item at path. Backends without
// attribute support are tolerated silently (best-effort semantics).
func (s *Storage) SetAttributes(path string, attrs Attributes) error {
	parent, leaf, err := s.resolve(path, false)
	if err != nil {
		return err
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.closed {
		return pathError("attrs", parent.path, ErrClosed)
	}
	e, err := parent.entryLocked(leaf, kindAny)
	if err != nil {
		return err
	}
	if err := parent.provider.SetAttributes(e.Locator, attrs); err != nil {
		if errors.Is(err, ErrUnsupported) {
			return nil
		}
		return parent.checkNotFound("attrs", e.Path, err, ErrNotExist)
	}
	// Entries handed to callers are never mutated; swap a fresh copy into
	// the cache instead.
	updated := *e
	updated.Attributes = attrs
	parent.entries[parent.root.caseKey(leaf)] = &updated
	return nil
}

// FreeSpace returns the free bytes reported by this node's provider.
func (s *Storage) FreeSpace() (int64, error) {
	return s.provider.FreeSpace()
}

// ClearCache discards this node's entry cache and, recursively, its cached
// descendants' caches. Cached child nodes stay open.
func (s *Storage) ClearCache() {
	s.mu.Lock()
	s.invalidateLocked()
	children := make([]*Storage, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.mu.Unlock()
	for _, c := range children {
		c.ClearCache()
	}
}

// invalidateMounts drops entry caches across the subtree and evicts
// cached virtual mounts, closing them. Called when the factory table
// changes, so both the storage-ness of entries and already-mounted nodes
// are re-evaluated against the current registrations.
func (s *Storage) invalidateMounts() {
	s.mu.Lock()
	s.invalidateLocked()
	var keep []*Storage
	for key, c := range s.children {
		if c.virtual {
			delete(s.children, key)
			_ = c.Close()
			s.root.metrics.eviction()
			continue
		}
		keep = append(keep, c)
	}
	s.mu.Unlock()
	for _, c := range keep {
		c.invalidateMounts()
	}
}

// Close closes every cached child node, disposes this node's provider
// unless it was marked leave-open, and clears all caches. Close is
// idempotent.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	children := make([]*Storage, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.children = nil
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range children {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if !s.leaveOpen {
		if err := s.provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// invalidatingStream drops the owning node's entry cache when the backend
// reports the underlying item has vanished mid-use.
type invalidatingStream struct {
	Stream
	owner *Storage
}

func (w *invalidatingStream) Read(p []byte) (int, error) {
	n, err := w.Stream.Read(p)
	w.check(err)
	return n, err
}

func (w *invalidatingStream) Write(p []byte) (int, error) {
	n, err := w.Stream.Write(p)
	w.check(err)
	return n, err
}

func (w *invalidatingStream) Seek(offset int64, whence int) (int64, error) {
	n, err := w.Stream.Seek(offset, whence)
	w.check(err)
	return n, err
}

func (w *invalidatingStream) check(err error) {
	if err != nil && IsNotFound(err) {
		w.owner.invalidate()
	}
}
