package records

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

const (
	fieldSeparator   = '\x1e'
	elementSeparator = ':'
)

// Fingerprint is a 128-bit content digest of a tuple
type Fingerprint [16]byte

// String returns the fingerprint as 32 lowercase hex characters
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ComputeFingerprint hashes a tuple's content.
//
// Null fields hash like empty lists and scalars like one-element lists.
// Whitespace is dropped from every element, and elements of unordered list
// fields are sorted, so list order inside a field does not change the result.
// Fields keep their position: the same values in different columns differ.
func ComputeFingerprint(t Tuple) Fingerprint {
	var b strings.Builder
	for i, field := range t {
		if i > 0 {
			b.WriteByte(fieldSeparator)
		}
		if field.Null {
			continue
		}

		elems := make([]string, len(field.Values))
		for j, v := range field.Values {
			elems[j] = stripSpace(v)
		}
		if field.List && !field.Ordered {
			sort.Strings(elems)
		}

		// Length prefixes keep the encoding unambiguous whatever the values contain.
		for _, e := range elems {
			b.WriteString(strconv.Itoa(len(e)))
			b.WriteByte(elementSeparator)
			b.WriteString(e)
		}
	}

	return Fingerprint(xxh3.HashString128(b.String()).Bytes())
}

func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
