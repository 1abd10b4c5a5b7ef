// Package storagetest provides a conformance test suite for validating
// provider implementations against the core storage contracts.
//
// Provider packages import the suite and execute it against a fresh
// provider per test:
//
//	func TestMemoryProvider(t *testing.T) {
//		storagetest.TestSuite(t, func(t *testing.T) core.Provider {
//			return local.NewMemory()
//		})
//	}
//
// The suite drives every provider through the full Storage API — path
// resolution, caching, CRUD, wildcard listing, copy — rather than poking
// the provider directly, so it validates the behavior a caller actually
// observes.
package storagetest

import (
	"testing"

	"github.com/jindal1979/PortableStorage/core"
)

// Config adapts the suite to provider behavior characteristics.
type Config struct {
	// ReadOnly skips every mutation test; listing and reading still run
	// against the fixture tree the provider is expected to contain (see
	// FixtureTree).
	ReadOnly bool

	// SkipTests lists sub-test names to skip, e.g. "CRUD/Rename".
	SkipTests []string
}

// NewProviderFunc returns a fresh, empty provider for one test. Tests
// mutate the tree, so each invocation must start clean.
type NewProviderFunc func(t *testing.T) core.Provider

// TestSuite runs all conformance tests against providers produced by
// newProvider, with the default read-write configuration.
func TestSuite(t *testing.T, newProvider NewProviderFunc) {
	TestSuiteWithConfig(t, newProvider, Config{})
}

// TestSuiteWithConfig runs the conformance tests honoring cfg.
func TestSuiteWithConfig(t *testing.T, newProvider NewProviderFunc, cfg Config) {
	skip := func(name string) bool {
		for _, s := range cfg.SkipTests {
			if s == name {
				return true
			}
		}
		return false
	}

	run := func(name string, fn func(t *testing.T, root *core.Root)) {
		t.Run(name, func(t *testing.T) {
			if skip(name) {
				t.Skip("skipped by provider configuration")
				return
			}
			root, err := core.New(newProvider(t))
			if err != nil {
				t.Fatalf("core.New: %v", err)
			}
			t.Cleanup(func() { _ = root.Close() })
			fn(t, root)
		})
	}

	if cfg.ReadOnly {
		run("ReadOnlyListing", testReadOnlyListing)
		run("ReadOnlyStreams", testReadOnlyStreams)
		return
	}

	run("EndToEnd", testEndToEnd)
	run("StorageTree", testStorageTree)
	run("StreamModes", testStreamModes)
	run("WildcardListing", testWildcardListing)
	run("CRUD", testCRUD)
	run("CopySubtree", testCopySubtree)
}
