// Package store is the generic, prefix-iterable key/value engine
// spec §6 requires underneath the PoS state: an Epoched/EpochedDelta
// abstraction (spec §4.1) over a Badger-backed KVStore, grounded in
// the teacher's storage/db.go (open/close, Update/View transactions,
// composite byte keys, JSON-encoded values).
package store

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/rashidovich/namada/poserrors"
)

// DB wraps a Badger database, the teacher's storage engine of choice,
// generalized here from block/tx keys to the PoS state's
// <prefix>/<epoch-or-bucket>/... key layout (spec §6).
type DB struct {
	bdb *badger.DB
}

// Open opens or creates a Badger database at path.
func Open(path string) (*DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, poserrors.Wrap(poserrors.KindStorage, err)
	}
	return &DB{bdb: bdb}, nil
}

// OpenInMemory opens a Badger database with no on-disk footprint, used
// by tests and the demo CLI's ephemeral mode.
func OpenInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, poserrors.Wrap(poserrors.KindStorage, err)
	}
	return &DB{bdb: bdb}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.bdb.Close()
}

// Tx is a single Badger transaction. The engine opens exactly one Tx
// per public operation (Bond, Unbond, Redelegate, Slash, ...) and
// threads it through every helper so the whole operation commits or
// reverts atomically, matching spec §5's "atomic write within a
// block" and §6's storage contract.
type Tx struct {
	txn      *badger.Txn
	writable bool
}

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(*Tx) error) error {
	return d.bdb.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn, writable: false})
	})
}

// Update runs fn in a read-write transaction, committed atomically if
// fn returns nil.
func (d *DB) Update(fn func(*Tx) error) error {
	return d.bdb.Update(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn, writable: true})
	})
}

// Get returns the raw value at key, and false if absent.
func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	item, err := t.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, poserrors.Wrap(poserrors.KindStorage, err)
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte{}, val...)
		return nil
	})
	if err != nil {
		return nil, false, poserrors.Wrap(poserrors.KindStorage, err)
	}
	return out, true, nil
}

// Set writes key=value.
func (t *Tx) Set(key, value []byte) error {
	if err := t.txn.Set(key, value); err != nil {
		return poserrors.Wrap(poserrors.KindStorage, err)
	}
	return nil
}

// Delete removes key, a no-op if absent.
func (t *Tx) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return poserrors.Wrap(poserrors.KindStorage, err)
	}
	return nil
}

// IteratePrefix calls fn for every key under prefix in ascending
// lexicographic key order — the ordering spec §4.1's Epoched.Iter and
// spec §6's bulk find_bonds rely on, since epoch suffixes are encoded
// big-endian.
func (t *Tx) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := append([]byte{}, item.Key()...)
		var val []byte
		if err := item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		}); err != nil {
			return poserrors.Wrap(poserrors.KindStorage, err)
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

// DeletePrefix removes every key under prefix.
func (t *Tx) DeletePrefix(prefix []byte) error {
	var keys [][]byte
	if err := t.IteratePrefix(prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte{}, key...))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := t.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
