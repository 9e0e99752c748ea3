// Package rgmid implements the replication group message id, an
// ordering-capable identifier that correlates a message across a broker
// HA pair.
package rgmid

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/c360/cachestream/errors"
)

// ID is a fixed 16-byte replication group message id. The first 8 bytes
// identify the origin broker HA pair; the last 8 bytes order messages
// within that origin. Two ids from different origins have no defined
// order.
type ID [16]byte

const (
	// Prefix starts every canonical string form.
	Prefix = "rmid1:"

	// StringLength is the exact length of the canonical string form,
	// prefix included.
	StringLength = 41
)

// Hex digit group widths of the canonical form, separated by dashes.
var groupWidths = []int{5, 11, 8, 8}

// IsValid reports whether the id is set. The zero value is not a valid
// id.
func (id ID) IsValid() bool {
	return id != ID{}
}

// origin returns the HA-pair identity bytes.
func (id ID) origin() []byte { return id[:8] }

// suffix returns the ordering bytes.
func (id ID) suffix() []byte { return id[8:] }

// Compare orders two ids from the same origin: -1, 0 or +1. Ids from
// different origin HA pairs are not mutually comparable and Compare fails
// with ErrNotComparable rather than inventing an order. Within one origin
// the ordering is strict and consistent with equality.
func (id ID) Compare(other ID) (int, error) {
	if !id.IsValid() || !other.IsValid() {
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "RGMID", "Compare",
			"comparing an unset id")
	}
	if !bytes.Equal(id.origin(), other.origin()) {
		return 0, errors.WrapInvalid(errors.ErrNotComparable, "RGMID", "Compare",
			"ids originate from different broker HA pairs")
	}
	return bytes.Compare(id.suffix(), other.suffix()), nil
}

// Equal reports byte equality.
func (id ID) Equal(other ID) bool {
	return id == other
}

// String renders the canonical 41-character form: the "rmid1:" prefix
// followed by the 32 hex digits in 5-11-8-8 groups.
func (id ID) String() string {
	digits := hex.EncodeToString(id[:])
	var b strings.Builder
	b.Grow(StringLength)
	b.WriteString(Prefix)
	off := 0
	for i, w := range groupWidths {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(digits[off : off+w])
		off += w
	}
	return b.String()
}

// FromString parses the canonical string form produced by String.
func FromString(s string) (ID, error) {
	if len(s) != StringLength || !strings.HasPrefix(s, Prefix) {
		return ID{}, errors.WrapInvalid(errors.ErrMalformedData, "RGMID", "FromString",
			fmt.Sprintf("%q is not a replication group message id", s))
	}
	groups := strings.Split(s[len(Prefix):], "-")
	if len(groups) != len(groupWidths) {
		return ID{}, errors.WrapInvalid(errors.ErrMalformedData, "RGMID", "FromString",
			"wrong group count")
	}
	var digits strings.Builder
	for i, g := range groups {
		if len(g) != groupWidths[i] {
			return ID{}, errors.WrapInvalid(errors.ErrMalformedData, "RGMID", "FromString",
				fmt.Sprintf("group %d has width %d, want %d", i, len(g), groupWidths[i]))
		}
		digits.WriteString(g)
	}
	raw, err := hex.DecodeString(digits.String())
	if err != nil {
		return ID{}, errors.WrapInvalid(errors.ErrMalformedData, "RGMID", "FromString",
			"non-hexadecimal digits")
	}
	var id ID
	copy(id[:], raw)
	if !id.IsValid() {
		return ID{}, errors.WrapInvalid(errors.ErrMalformedData, "RGMID", "FromString",
			"all-zero id")
	}
	return id, nil
}
