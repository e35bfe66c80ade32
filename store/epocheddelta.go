package store

import (
	"encoding/binary"

	"github.com/rashidovich/namada/postypes"
)

// EpochedDelta is spec §4.1's EpochedDelta<T> specialized to signed
// token deltas — the only value this module ever accumulates this
// way (validator_deltas, total_deltas). Get sums every stored delta at
// or before the query epoch; unlike Epoched[T], writes never overwrite
// a prior epoch's entry, they add to it.
type EpochedDelta struct {
	prefix []byte
}

// NewEpochedDelta builds an EpochedDelta rooted at prefix.
func NewEpochedDelta(prefix []byte) *EpochedDelta {
	return &EpochedDelta{prefix: prefix}
}

func (e *EpochedDelta) keyAt(epoch postypes.Epoch) []byte {
	kb := &KeyBuilder{buf: append([]byte{}, e.prefix...)}
	return kb.Epoch(epoch).Bytes()
}

func encodeDelta(d postypes.Delta) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(d))
	return b[:]
}

func decodeDelta(b []byte) postypes.Delta {
	if len(b) < 8 {
		return 0
	}
	return postypes.Delta(binary.BigEndian.Uint64(b))
}

// AddAtOffset adds delta to whatever is already stored at current+offset
// (spec §4.1 set_at_offset for EpochedDelta).
func (e *EpochedDelta) AddAtOffset(tx *Tx, delta postypes.Delta, current postypes.Epoch, offset uint64) error {
	return e.AddAt(tx, delta, current.Add(offset))
}

// AddAt adds delta to whatever is already stored exactly at epoch.
func (e *EpochedDelta) AddAt(tx *Tx, delta postypes.Delta, epoch postypes.Epoch) error {
	key := e.keyAt(epoch)
	raw, ok, err := tx.Get(key)
	if err != nil {
		return err
	}
	existing := postypes.Delta(0)
	if ok {
		existing = decodeDelta(raw)
	}
	return tx.Set(key, encodeDelta(existing+delta))
}

// Get sums every stored delta at or before at, returning the running
// stake as of that epoch. Callers needing a retention horizon (spec
// §4.1: "clipped by a retention horizon derived from params") pass
// minEpoch as the oldest epoch still retained; deltas below it are
// skipped and do not count toward the sum.
func (e *EpochedDelta) Get(tx *Tx, at postypes.Epoch, minEpoch postypes.Epoch) (postypes.Delta, error) {
	var sum postypes.Delta
	err := tx.IteratePrefix(e.prefix, func(key, val []byte) error {
		epoch := DecodeEpochSuffix(key)
		if epoch > at || epoch < minEpoch {
			return nil
		}
		sum += decodeDelta(val)
		return nil
	})
	return sum, err
}

// Iter calls fn for every stored (epoch, delta) pair in ascending
// order, used by purge and diagnostics.
func (e *EpochedDelta) Iter(tx *Tx, fn func(epoch postypes.Epoch, delta postypes.Delta) error) error {
	type entry struct {
		epoch postypes.Epoch
		delta postypes.Delta
	}
	var entries []entry
	err := tx.IteratePrefix(e.prefix, func(key, val []byte) error {
		entries = append(entries, entry{epoch: DecodeEpochSuffix(key), delta: decodeDelta(val)})
		return nil
	})
	if err != nil {
		return err
	}
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].epoch < entries[i].epoch {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	for _, e2 := range entries {
		if err := fn(e2.epoch, e2.delta); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEpoch removes the delta entry stored exactly at epoch.
func (e *EpochedDelta) DeleteEpoch(tx *Tx, epoch postypes.Epoch) error {
	return tx.Delete(e.keyAt(epoch))
}
