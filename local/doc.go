// Package local provides file-system storage providers backed by go-billy.
//
// NewLocal roots a provider at a directory on disk (osfs); NewMemory
// creates an empty in-memory provider (memfs) useful for tests and
// scratch trees. Both implement core.Provider and can back a storage tree
// created with core.New.
//
// Sub-containers are opened through billy's Chroot, so every provider is
// rooted at its own directory and locators are plain child names.
package local
