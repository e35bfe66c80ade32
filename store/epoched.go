package store

import (
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rashidovich/namada/postypes"
)

// Codec tells an Epoched[T] how to serialize its value type
// (EpochedDelta is not generic and uses its own fixed 8-byte
// encoding). JSONCodec below covers every value type this module
// stores; a caller could supply a tighter binary codec without
// changing any calling code.
type Codec[T any] struct {
	Marshal   func(T) ([]byte, error)
	Unmarshal func([]byte) (T, error)
}

// JSONCodec is the default codec, grounded in the teacher's
// storage/db.go use of encoding/json for block/tx/genesis values.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Marshal: func(v T) ([]byte, error) { return json.Marshal(v) },
		Unmarshal: func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		},
	}
}

// decodeCache is a small LRU of decoded values in front of Badger's
// bytes, grounded in prysmaticlabs-prysm/beacon-chain/cache's use of
// hashicorp/golang-lru — decoding a validator-set bucket or commission
// rate repeatedly within one block's worth of operations is wasted
// work once the underlying bytes haven't changed.
type decodeCache[T any] struct {
	c *lru.Cache[string, T]
}

func newDecodeCache[T any](size int) *decodeCache[T] {
	c, _ := lru.New[string, T](size)
	return &decodeCache[T]{c: c}
}

func (d *decodeCache[T]) get(key string) (T, bool) {
	if d == nil || d.c == nil {
		var zero T
		return zero, false
	}
	return d.c.Get(key)
}

func (d *decodeCache[T]) put(key string, v T) {
	if d == nil || d.c == nil {
		return
	}
	d.c.Add(key, v)
}

func (d *decodeCache[T]) invalidate(key string) {
	if d == nil || d.c == nil {
		return
	}
	d.c.Remove(key)
}

// Epoched is a sparse, epoch-indexed timeline of whole values (spec
// §4.1 Epoched<T>): Get projects forward from the greatest stored
// epoch at-or-before the query epoch, rather than materializing every
// epoch in between.
type Epoched[T any] struct {
	prefix []byte
	codec  Codec[T]
	cache  *decodeCache[T]
}

// NewEpoched builds an Epoched[T] rooted at prefix (typically built
// with a KeyBuilder identifying the field and the validator/global
// scope it belongs to).
func NewEpoched[T any](prefix []byte, codec Codec[T]) *Epoched[T] {
	return &Epoched[T]{prefix: prefix, codec: codec, cache: newDecodeCache[T](256)}
}

func (e *Epoched[T]) keyAt(epoch postypes.Epoch) []byte {
	kb := &KeyBuilder{buf: append([]byte{}, e.prefix...)}
	return kb.Epoch(epoch).Bytes()
}

func (e *Epoched[T]) cacheKey(epoch postypes.Epoch) string {
	return string(e.keyAt(epoch))
}

// Set writes v directly at epoch (used by copy_validator_sets_and_positions
// and other call sites that write an exact epoch rather than an
// offset from current).
func (e *Epoched[T]) Set(tx *Tx, epoch postypes.Epoch, v T) error {
	b, err := e.codec.Marshal(v)
	if err != nil {
		return err
	}
	if err := tx.Set(e.keyAt(epoch), b); err != nil {
		return err
	}
	e.cache.put(e.cacheKey(epoch), v)
	return nil
}

// SetAtOffset writes v at current+offset — the pipeline write pattern
// spec §4.1 calls set_at_offset.
func (e *Epoched[T]) SetAtOffset(tx *Tx, v T, current postypes.Epoch, offset uint64) error {
	return e.Set(tx, current.Add(offset), v)
}

// InitAtGenesis seeds every epoch from current through current+P with
// v, so a GetExact at any epoch in that range sees the value directly
// rather than relying on Get's forward projection (spec §4.1's
// init_at_genesis is explicit about seeding the whole pipeline window,
// not just the write epoch).
func (e *Epoched[T]) InitAtGenesis(tx *Tx, v T, current postypes.Epoch, pipelineLen uint64) error {
	for off := uint64(0); ; off++ {
		if err := e.Set(tx, current.Add(off), v); err != nil {
			return err
		}
		if off == pipelineLen {
			return nil
		}
	}
}

// Get returns the value at the greatest stored epoch <= at, and false
// if nothing has ever been stored at or before at. This does not
// consult or populate the decode cache: the cache is keyed by exact
// epoch, and a projected read's source epoch can shift underneath it
// as later Sets land at epochs between the source and at, which would
// leave a cached projection stale without any Set touching its key.
func (e *Epoched[T]) Get(tx *Tx, at postypes.Epoch) (T, bool, error) {
	var best T
	found := false
	var bestEpoch postypes.Epoch
	err := tx.IteratePrefix(e.prefix, func(key, val []byte) error {
		epoch := DecodeEpochSuffix(key)
		if epoch > at {
			return nil
		}
		if !found || epoch > bestEpoch {
			v, err := e.codec.Unmarshal(val)
			if err != nil {
				return err
			}
			best = v
			bestEpoch = epoch
			found = true
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return best, found, nil
}

// GetExact returns the value stored exactly at epoch, without
// projecting forward from an earlier epoch.
func (e *Epoched[T]) GetExact(tx *Tx, epoch postypes.Epoch) (T, bool, error) {
	if cached, ok := e.cache.get(e.cacheKey(epoch)); ok {
		return cached, true, nil
	}
	raw, ok, err := tx.Get(e.keyAt(epoch))
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	v, err := e.codec.Unmarshal(raw)
	if err != nil {
		var zero T
		return zero, false, err
	}
	e.cache.put(e.cacheKey(epoch), v)
	return v, true, nil
}

// Iter calls fn for every stored epoch in ascending order (spec
// §4.1's iter operation).
func (e *Epoched[T]) Iter(tx *Tx, fn func(epoch postypes.Epoch, v T) error) error {
	type entry struct {
		epoch postypes.Epoch
		v     T
	}
	var entries []entry
	err := tx.IteratePrefix(e.prefix, func(key, val []byte) error {
		v, err := e.codec.Unmarshal(val)
		if err != nil {
			return err
		}
		entries = append(entries, entry{epoch: DecodeEpochSuffix(key), v: v})
		return nil
	})
	if err != nil {
		return err
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].epoch < entries[i].epoch {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	for _, e2 := range entries {
		if err := fn(e2.epoch, e2.v); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEpoch removes the value stored exactly at epoch (used by
// purge_validator_sets_for_old_epoch and general GC).
func (e *Epoched[T]) DeleteEpoch(tx *Tx, epoch postypes.Epoch) error {
	e.cache.invalidate(e.cacheKey(epoch))
	return tx.Delete(e.keyAt(epoch))
}
