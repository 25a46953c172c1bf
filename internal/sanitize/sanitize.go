// Package sanitize validates and normalizes folder paths and file names
// before they are sent to the remote document store.
//
// Two modes are supported:
//
//   - Canonical mode: when a structured identifier is available the caller's
//     free-form path is ignored entirely and a fixed path of the form
//     /<root>/<year>/<category>/<id> is derived, each segment sanitized
//     independently. A caller-controlled path can never escape the intended
//     tree this way, even if upstream validation is bypassed.
//
//   - Free-form mode: an arbitrary path is validated and normalized. Empty
//     input, traversal segments and control characters are rejected;
//     duplicate separators are collapsed; disallowed characters are replaced
//     segment by segment; a mandatory root prefix is inserted if absent.
//
// Path and Name are value types: they are only produced by this package and
// the rest of the codebase never constructs them ad hoc.
package sanitize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path is a sanitized folder path. Always absolute, never contains
// traversal segments, control characters or duplicate separators.
type Path string

// Name is a sanitized file name. Never contains path separators, control
// characters or reserved device names; bounded to maxSegmentLen bytes.
type Name string

// StructuredID identifies the business record a document belongs to.
// When present, uploads derive their storage path from it (canonical mode).
type StructuredID struct {
	// RecordID is the owning record identifier (e.g. an expense id).
	RecordID string

	// CategoryCode groups records, typically a project code.
	CategoryCode string

	// Year is the accounting year. Zero means the current year is unknown
	// and the record id alone determines the leaf folder.
	Year int
}

// CanonicalRoot is the fixed tree that canonical-mode paths live under.
const CanonicalRoot = "Receipts"

// maxSegmentLen caps each path segment and file name, in bytes.
const maxSegmentLen = 255

var (
	ErrEmptyPath     = errors.New("path is empty")
	ErrEmptyName     = errors.New("file name is empty")
	ErrTraversal     = errors.New("path contains traversal segment")
	ErrControlChars  = errors.New("path contains control characters")
	ErrSeparatorName = errors.New("file name contains path separator")
	ErrReservedName  = errors.New("file name is a reserved device name")
)

// Characters replaced with '_' inside a segment. These are the characters
// rejected by the remote store (Windows filesystem semantics) plus '#' and
// '%', which break URL path addressing.
const disallowedChars = `<>:"|?*\#%`

// Reserved device names rejected as file names (case-insensitive,
// extension ignored).
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// CanonicalPath derives the fixed storage path for a structured identifier:
// /Receipts/<year>/<category>/<id>. Every segment is sanitized independently.
// Missing category or year segments are simply omitted, keeping the path
// deterministic for the fields that are present.
func CanonicalPath(id StructuredID) (Path, error) {
	if id.RecordID == "" {
		return "", fmt.Errorf("structured identifier: %w", ErrEmptyPath)
	}

	segments := []string{CanonicalRoot}
	if id.Year > 0 {
		segments = append(segments, strconv.Itoa(id.Year))
	}
	if id.CategoryCode != "" {
		segments = append(segments, cleanSegment(id.CategoryCode))
	}
	segments = append(segments, cleanSegment(id.RecordID))

	return Path("/" + strings.Join(segments, "/")), nil
}

// CleanPath validates and normalizes a free-form folder path, enforcing the
// given mandatory root (without slashes, e.g. "Documents"). The root prefix
// is inserted if the input does not already start with it.
//
// Traversal segments and control characters are rejected outright; they are
// never "repaired" into something safe.
func CleanPath(raw string, root string) (Path, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyPath
	}

	if containsControl(raw) {
		return "", ErrControlChars
	}

	// Backslashes are treated as separators so a traversal attempt cannot
	// hide behind the Windows form.
	normalized := strings.ReplaceAll(raw, `\`, "/")

	var segments []string
	for _, seg := range strings.Split(normalized, "/") {
		if seg == "" || seg == "." {
			continue // collapses duplicate separators
		}
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrTraversal, raw)
		}
		segments = append(segments, cleanSegment(seg))
	}

	if len(segments) == 0 {
		return "", ErrEmptyPath
	}

	if root != "" && !strings.EqualFold(segments[0], root) {
		segments = append([]string{root}, segments...)
	}

	return Path("/" + strings.Join(segments, "/")), nil
}

// CleanName validates and normalizes a file name. Path separators, traversal
// and reserved device names are rejected; disallowed characters are replaced
// with '_'; names longer than 255 bytes are truncated with the extension
// preserved.
func CleanName(raw string) (Name, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyName
	}

	if strings.ContainsAny(trimmed, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrSeparatorName, raw)
	}
	if trimmed == ".." || trimmed == "." {
		return "", fmt.Errorf("%w: %q", ErrTraversal, raw)
	}
	if containsControl(trimmed) {
		return "", ErrControlChars
	}

	base := trimmed
	if dot := strings.IndexByte(base, '.'); dot > 0 {
		base = base[:dot]
	}
	if _, reserved := reservedNames[strings.ToUpper(base)]; reserved {
		return "", fmt.Errorf("%w: %q", ErrReservedName, raw)
	}

	cleaned := replaceDisallowed(trimmed)
	// Leading/trailing dots confuse the remote store's path addressing.
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "", ErrEmptyName
	}

	if len(cleaned) > maxSegmentLen {
		cleaned = truncateName(cleaned, maxSegmentLen)
	}

	return Name(cleaned), nil
}

// cleanSegment sanitizes one path segment: disallowed characters become '_'
// and the segment is capped at maxSegmentLen bytes.
func cleanSegment(seg string) string {
	cleaned := replaceDisallowed(seg)
	if len(cleaned) > maxSegmentLen {
		cleaned = cleaned[:maxSegmentLen]
	}
	return cleaned
}

func replaceDisallowed(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(disallowedChars, r) {
			return '_'
		}
		return r
	}, s)
}

func containsControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

// truncateName shortens a file name to max bytes, keeping the extension.
func truncateName(name string, max int) string {
	ext := ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		ext = name[dot:]
	}
	if len(ext) >= max {
		return name[:max]
	}
	return name[:max-len(ext)] + ext
}
