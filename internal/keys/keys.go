// Package keys builds deterministic cache keys so that logically identical
// queries always map to the same key and different queries never collide.
package keys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Separator joins the namespace and parts of a key. No part may contain it.
const Separator = ":"

// ErrInvalidKeyPart is returned when a key part contains the separator.
// This is a programmer error and fails loudly rather than silently colliding.
var ErrInvalidKeyPart = errors.New("key part contains reserved separator")

// Build concatenates the namespace and parts with the separator.
func Build(namespace string, parts ...string) (string, error) {
	for _, part := range parts {
		if strings.Contains(part, Separator) {
			return "", fmt.Errorf("%w: %q", ErrInvalidKeyPart, part)
		}
	}

	b := strings.Builder{}
	b.WriteString(namespace)
	for _, part := range parts {
		b.WriteString(Separator)
		b.WriteString(part)
	}
	return b.String(), nil
}

// BuildList builds a key for a paginated list query. The filter map is
// canonicalized (keys sorted) and hashed so that insertion order never
// affects the key and key length stays bounded regardless of filter size.
func BuildList(namespace string, page, pageSize int, filters map[string]any) string {
	return fmt.Sprintf("%s%slist%sp%d%sn%d%sf%x",
		namespace, Separator, Separator, page, Separator, pageSize, Separator, hashFilters(filters))
}

// hashFilters produces a 64-bit digest of the canonical filter representation.
// Every field is length-prefixed and the value carries its dynamic type, so
// two distinct filter maps can never serialize to the same byte stream:
// {"a": "1;b=2"} and {"a": "1", "b": 2} frame differently, as do the int 1
// and the string "1".
func hashFilters(filters map[string]any) uint64 {
	if len(filters) == 0 {
		return 0
	}

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	h := xxhash.New()
	var frame [binary.MaxVarintLen64]byte
	writeField := func(field string) {
		n := binary.PutUvarint(frame[:], uint64(len(field)))
		_, _ = h.Write(frame[:n])
		_, _ = h.WriteString(field)
	}

	for _, name := range names {
		writeField(name)
		writeField(fmt.Sprintf("%T", filters[name]))
		writeField(fmt.Sprintf("%v", filters[name]))
	}
	return h.Sum64()
}
