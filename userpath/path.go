// Package userpath parses user-scoped file paths.
//
// A path has the form /<userID>/<name>[/<name>...]. The owner segment is
// followed by at least one name segment. Storage keys use the normalized
// form without the leading slash.
package userpath

import (
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/filesaga/fault"
)

const separator = "/"

// Path is a validated, immutable user-scoped path.
type Path struct {
	userID     string
	normalized string
}

// FromAbsolute parses an absolute path such as "/alice/docs/a.txt".
// The path is cleaned before validation, so "." and ".." segments and
// repeated separators are resolved.
func FromAbsolute(raw string) (Path, error) {
	if !path.IsAbs(raw) {
		return Path{}, fault.Argument(fmt.Sprintf("invalid path %q, should be absolute", raw))
	}

	cleaned := path.Clean(raw)

	return fromParts(strings.Split(strings.TrimPrefix(cleaned, separator), separator))
}

// FromNormalized parses a storage key such as "alice/docs/a.txt".
func FromNormalized(raw string) (Path, error) {
	if raw == "" || path.IsAbs(raw) || path.Clean(raw) != raw {
		return Path{}, fault.Argument(fmt.Sprintf("invalid path %q, should be normalized", raw))
	}

	parts := strings.Split(raw, separator)
	for _, p := range parts {
		if p == "." || p == ".." {
			return Path{}, fault.Argument(fmt.Sprintf("invalid path %q, should be normalized", raw))
		}
	}

	return fromParts(parts)
}

func fromParts(parts []string) (Path, error) {
	if len(parts) < 2 || parts[0] == "" {
		return Path{}, fault.Argument("invalid path, missing parts of the path")
	}

	return Path{
		userID:     parts[0],
		normalized: strings.Join(parts, separator),
	}, nil
}

// UserID returns the owner segment.
func (p Path) UserID() string { return p.userID }

// Normalized returns the path without a leading slash. It is used as the
// object key and as the directory store sort key.
func (p Path) Normalized() string { return p.normalized }

// Absolute returns the path with a leading slash.
func (p Path) Absolute() string { return separator + p.normalized }

// Basename returns the last path segment.
func (p Path) Basename() string { return path.Base(p.normalized) }

// IsZero reports whether p is the zero value.
func (p Path) IsZero() bool { return p.normalized == "" }

func (p Path) String() string { return p.Absolute() }
