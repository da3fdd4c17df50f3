package permission

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math/bits"
)

// MaskBits is the number of permission slots a single Mask can hold.
const MaskBits = 128

// maskEncodedLen is the length of the base64url form produced by Mask.Encode.
const maskEncodedLen = 22

var (
	// ErrBitOutOfRange is returned when a bit index is >= MaskBits.
	ErrBitOutOfRange = errors.New("permission: bit index out of range")

	// ErrMaskCorrupted is returned when an encoded mask cannot be decoded.
	ErrMaskCorrupted = errors.New("permission: corrupted mask encoding")
)

// Mask is a fixed-width 128-bit permission set. The zero value is the empty
// set. Mask is a value type and safe to copy; all operations return a new
// Mask instead of mutating the receiver.
type Mask struct {
	lo uint64
	hi uint64
}

// NewMask returns a Mask with the given bit indexes set. Indexes outside
// [0, MaskBits) are ignored; use Set when out-of-range detection matters.
func NewMask(indexes ...uint) Mask {
	var m Mask
	for _, i := range indexes {
		m, _ = m.Set(i)
	}
	return m
}

// Set returns a copy of the mask with bit i set.
func (m Mask) Set(i uint) (Mask, error) {
	if i >= MaskBits {
		return m, ErrBitOutOfRange
	}
	if i < 64 {
		m.lo |= 1 << i
	} else {
		m.hi |= 1 << (i - 64)
	}
	return m, nil
}

// Has reports whether bit i is set. Out-of-range indexes report false.
func (m Mask) Has(i uint) bool {
	if i >= MaskBits {
		return false
	}
	if i < 64 {
		return m.lo&(1<<i) != 0
	}
	return m.hi&(1<<(i-64)) != 0
}

// HasAll reports whether every bit set in other is also set in m.
func (m Mask) HasAll(other Mask) bool {
	return m.lo&other.lo == other.lo && m.hi&other.hi == other.hi
}

// HasAny reports whether at least one bit of other is set in m.
func (m Mask) HasAny(other Mask) bool {
	return m.lo&other.lo != 0 || m.hi&other.hi != 0
}

// Union returns the set union of m and other.
func (m Mask) Union(other Mask) Mask {
	return Mask{lo: m.lo | other.lo, hi: m.hi | other.hi}
}

// Intersect returns the set intersection of m and other.
func (m Mask) Intersect(other Mask) Mask {
	return Mask{lo: m.lo & other.lo, hi: m.hi & other.hi}
}

// Without returns m with every bit of other cleared.
func (m Mask) Without(other Mask) Mask {
	return Mask{lo: m.lo &^ other.lo, hi: m.hi &^ other.hi}
}

// IsZero reports whether no bits are set.
func (m Mask) IsZero() bool {
	return m.lo == 0 && m.hi == 0
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	return bits.OnesCount64(m.lo) + bits.OnesCount64(m.hi)
}

// Encode renders the mask as a fixed-length base64url string suitable for
// embedding in a JWT claim. The layout is 16 bytes big-endian, high word
// first, so encodings of the same mask are byte-identical everywhere.
func (m Mask) Encode() string {
	var raw [16]byte
	binary.BigEndian.PutUint64(raw[0:8], m.hi)
	binary.BigEndian.PutUint64(raw[8:16], m.lo)
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeMask parses a string produced by Mask.Encode. The empty string
// decodes to the empty mask so absent claims degrade to "no permissions".
func DecodeMask(s string) (Mask, error) {
	if s == "" {
		return Mask{}, nil
	}
	if len(s) != maskEncodedLen {
		return Mask{}, ErrMaskCorrupted
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return Mask{}, ErrMaskCorrupted
	}
	return Mask{
		hi: binary.BigEndian.Uint64(raw[0:8]),
		lo: binary.BigEndian.Uint64(raw[8:16]),
	}, nil
}

// Overrides carry per-principal adjustments applied on top of a role mask.
// Deny always wins: a bit present in Deny is excluded from the effective set
// even when the role or Grant carries it.
type Overrides struct {
	Grant Mask
	Deny  Mask
}

// Effective computes the permission set a principal actually holds:
// (role | grant) &^ deny.
func Effective(role Mask, o Overrides) Mask {
	return role.Union(o.Grant).Without(o.Deny)
}
