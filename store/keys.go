package store

import (
	"encoding/binary"

	"github.com/rashidovich/namada/postypes"
)

// Keys are built as a sequence of length-prefixed segments so that a
// prefix of segments is always a valid iteration prefix (spec §6:
// "<pos-address> / <subkey-class> / <address or epoch or bucket> /
// ... / value-bytes"). This mirrors the teacher's fixed-width
// makeBlockKey/makeTxKey helpers, generalized to variadic segments.
type KeyBuilder struct {
	buf []byte
}

// NewKey starts a key with a subkey-class tag, e.g. "bond", "unbond".
func NewKey(class string) *KeyBuilder {
	kb := &KeyBuilder{}
	return kb.Str(class)
}

func (kb *KeyBuilder) appendSegment(b []byte) *KeyBuilder {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	kb.buf = append(kb.buf, lenBuf[:]...)
	kb.buf = append(kb.buf, b...)
	return kb
}

// Str appends a string segment.
func (kb *KeyBuilder) Str(s string) *KeyBuilder {
	return kb.appendSegment([]byte(s))
}

// Raw appends an arbitrary byte-slice segment, for identifiers (e.g. a
// consensus public key) that don't have a dedicated helper above.
func (kb *KeyBuilder) Raw(b []byte) *KeyBuilder {
	return kb.appendSegment(b)
}

// Addr appends an address segment.
func (kb *KeyBuilder) Addr(a postypes.Address) *KeyBuilder {
	return kb.appendSegment(a[:])
}

// Epoch appends a big-endian epoch segment so that byte order matches
// numeric order, which Epoched.Iter and EpochedDelta.Get rely on.
func (kb *KeyBuilder) Epoch(e postypes.Epoch) *KeyBuilder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(e))
	return kb.appendSegment(b[:])
}

// Amount appends a big-endian amount segment, used to key the
// ascending/descending stake buckets of the validator sets.
func (kb *KeyBuilder) Amount(a postypes.Amount) *KeyBuilder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(a))
	return kb.appendSegment(b[:])
}

// Uint64 appends a raw big-endian uint64 segment (positions, etc).
func (kb *KeyBuilder) Uint64(v uint64) *KeyBuilder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return kb.appendSegment(b[:])
}

// Bytes returns the built key. The builder is reusable as a prefix by
// calling Bytes before appending further segments.
func (kb *KeyBuilder) Bytes() []byte {
	out := make([]byte, len(kb.buf))
	copy(out, kb.buf)
	return out
}

// Clone returns an independent copy of kb so a shared prefix builder
// can be extended differently by multiple call sites.
func (kb *KeyBuilder) Clone() *KeyBuilder {
	out := &KeyBuilder{buf: make([]byte, len(kb.buf))}
	copy(out.buf, kb.buf)
	return out
}

// DecodeEpochSuffix reads the trailing 4-byte-length-prefixed 8-byte
// epoch segment appended last to key, used by Epoched.Iter /
// EpochedDelta.Get to recover the epoch each stored key represents.
func DecodeEpochSuffix(key []byte) postypes.Epoch {
	if len(key) < 8 {
		return 0
	}
	return postypes.Epoch(binary.BigEndian.Uint64(key[len(key)-8:]))
}
