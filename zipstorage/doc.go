// Package zipstorage mounts zip archives as read-only storages.
//
// Register the factory on a root and any stream whose name ends in ".zip"
// becomes traversable like a directory:
//
//	root, _ := core.New(provider, core.WithVirtualProvider(".zip", zipstorage.NewFactory()))
//	data, _ := root.ReadFile("bundle.zip/docs/readme.txt")
//
// The archive stream is wrapped in a synchronizing view so the central
// directory and entry contents can be read at arbitrary offsets. All
// mutation operations report ErrUnsupported.
package zipstorage
