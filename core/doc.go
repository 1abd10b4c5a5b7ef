// Package core implements a hierarchical, provider-agnostic storage tree.
//
// A tree is made of storages (containers) and streams (leaf items), addressed
// by slash-separated paths. Every storage node is backed by exactly one
// Provider, the pluggable capability that performs the actual I/O. Concrete
// providers live in sibling packages (local, s3); core only orchestrates them.
//
// The root of a tree is created with New and carries the configuration shared
// by every node: the entry-cache timeout, the case rule for name comparison,
// and the table of virtual provider factories. A virtual provider factory
// mounts the contents of a stream (for example a zip archive) as a nested
// storage, selected by file-extension match.
//
// Example:
//
//	provider, _ := local.NewLocal("/data")
//	root, _ := core.New(provider,
//		core.WithCacheTimeout(10*time.Second),
//		core.WithVirtualProvider(".zip", zipstorage.NewFactory()),
//	)
//	defer root.Close()
//
//	s, _ := root.OpenStream("docs/report.txt", core.ModeOpen, core.AccessRead)
//	defer s.Close()
//
// All operations are synchronous and safe for concurrent use.
package core
