package store

import "encoding/json"

// GetBlob reads and JSON-decodes the value at key, returning the zero
// value and false if absent. Used for the PoS ledger's compound maps
// (bonds, unbonds, redelegated-bond indices, enqueued slashes) whose
// shape is "the whole nested map is the value", unlike Epoched[T]
// where each epoch gets its own key.
func GetBlob[T any](tx *Tx, key []byte) (T, bool, error) {
	var zero T
	raw, ok, err := tx.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// SetBlob JSON-encodes v and writes it at key.
func SetBlob[T any](tx *Tx, key []byte, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(key, b)
}
