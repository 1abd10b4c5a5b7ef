package core

import (
	"regexp"
	"strings"
)

// Separator is the canonical path separator. Backslashes in incoming paths
// are normalized to it before resolution.
const Separator = "/"

// NormalizePath converts backslashes to the canonical separator and strips
// redundant separators. A leading separator is preserved because it means
// "resolve from the root".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, Separator)
	rooted := strings.HasPrefix(p, Separator)
	segs := splitSegments(p)
	out := strings.Join(segs, Separator)
	if rooted {
		return Separator + out
	}
	return out
}

// JoinPath combines a parent path with a child name.
func JoinPath(parent, name string) string {
	if parent == "" || parent == Separator {
		return Separator + name
	}
	return parent + Separator + name
}

// SplitPath splits a normalized relative path into its parent portion
// (possibly empty) and its final segment.
func SplitPath(p string) (parent, leaf string) {
	idx := strings.LastIndex(p, Separator)
	if idx < 0 {
		return "", p
	}
	return p[:idx], p[idx+1:]
}

func splitSegments(p string) []string {
	parts := strings.Split(p, Separator)
	segs := parts[:0]
	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// validName reports whether name can be used as a single entry name.
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`)
}

// extension returns the lower-cased file extension of name including the
// leading dot, or "" when name has none.
func extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}

// MatchPattern reports whether name matches the wildcard pattern. `*`
// matches any run of characters and `?` matches exactly one character; all
// other characters match literally. An empty pattern matches everything.
//
// path.Match is not used because its character classes and separator
// handling do not belong to this pattern language.
func MatchPattern(pattern, name string, caseSensitive bool) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	var b strings.Builder
	if !caseSensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// hasWildcard reports whether s contains pattern metacharacters.
func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}
