package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func TestUnjail_NotJailedFails(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 100, 0)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		return e.Unjail(tx, v, 0)
	})
	require.Error(t, err)
	require.True(t, poserrors.Is(err, poserrors.KindNotJailed))
}

func TestUnjail_InsideSlashProcessingWindowFails(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)
	current := postypes.Epoch(2)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		if err := e.Bond(tx, v, v, 100, 0); err != nil {
			return err
		}
		return e.Slash(tx, current, current, 1, postypes.SlashKindDuplicateVote, v, current)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		return e.Unjail(tx, v, current.Add(e.Params().PipelineLen))
	})
	require.Error(t, err)
	require.True(t, poserrors.Is(err, poserrors.KindNotEligibleForUnjail))
}

func TestUnjail_AfterWindowReadmitsToSet(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)
	current := postypes.Epoch(2)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		if err := e.Bond(tx, v, v, 100, 0); err != nil {
			return err
		}
		return e.Slash(tx, current, current, 1, postypes.SlashKindDuplicateVote, v, current)
	})
	require.NoError(t, err)

	eligible := current.Add(e.Params().SlashProcessingOffset())
	err = db.Update(func(tx *store.Tx) error {
		return e.Unjail(tx, v, eligible)
	})
	require.NoError(t, err)

	pipeline := eligible.Add(e.Params().PipelineLen)
	var state postypes.ValidatorState
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		state, innerErr = e.State(tx, v, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.NotEqual(t, postypes.ValidatorStateJailed, state)
}
