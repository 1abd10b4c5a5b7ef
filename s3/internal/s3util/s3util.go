// Package s3util provides key normalization helpers for S3 object
// addressing.
package s3util

import (
	"path/filepath"
	"strings"
)

// NormalizePrefix cleans a key prefix: backslashes become forward slashes,
// "." and ".." segments are resolved, and surrounding slashes are trimmed.
// Empty and "." prefixes normalize to "".
func NormalizePrefix(prefix string) string {
	if prefix == "" || prefix == "." {
		return ""
	}
	prefix = strings.ReplaceAll(prefix, `\`, "/")
	prefix = filepath.ToSlash(filepath.Clean(prefix))
	return strings.Trim(prefix, "/")
}

// ChildKey constructs the object key for a child of the given prefix.
func ChildKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// DirKey returns the listing prefix for a container key: the key with a
// trailing slash, or "" for the bucket root.
func DirKey(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}
