package block

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// keySpace namespaces name-based block keys.
var keySpace = uuid.MustParse("6f1c2f0e-5a53-4c8e-9a4e-2b7d3c1e8f10")

// NewKey derives a 12-character block key from the seed parts. The same
// parts always yield the same key.
func NewKey(parts ...string) string {
	id := uuid.NewSHA1(keySpace, []byte(strings.Join(parts, "\x00")))
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

// UniqueKey returns NewKey(parts...) unless it is already in taken, in
// which case a counter is appended to the seed until a free key is found.
// The returned key is added to taken.
func UniqueKey(taken map[string]bool, parts ...string) string {
	k := NewKey(parts...)
	for n := 1; taken[k]; n++ {
		k = NewKey(append(slices.Clip(parts), strconv.Itoa(n))...)
	}
	taken[k] = true
	return k
}

// KeySet returns the set of block keys in use.
func (d Document) KeySet() map[string]bool {
	set := make(map[string]bool, len(d.Blocks))
	for _, b := range d.Blocks {
		set[b.Key()] = true
	}
	return set
}
