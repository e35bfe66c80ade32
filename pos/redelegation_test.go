package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func TestRedelegate_MovesStakeFromSrcToDest(t *testing.T) {
	e, db := newTestEngine(t)
	src, dest, delegator := addr(1), addr(2), addr(3)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, src, 0)
		registerValidator(t, e, tx, dest, 0)
		return e.Bond(tx, delegator, src, 100, 0)
	})
	require.NoError(t, err)

	var result postypes.ResultSlashing
	err = db.Update(func(tx *store.Tx) error {
		var innerErr error
		result, innerErr = e.Redelegate(tx, delegator, src, dest, 100, 0)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(100), result.Sum)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	var destStake postypes.Amount
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		destStake, innerErr = e.validatorStakeAt(tx, dest, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(100), destStake)
}

func TestRedelegate_RejectsSameSourceAndDest(t *testing.T) {
	e, db := newTestEngine(t)
	v, delegator := addr(1), addr(2)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, delegator, v, 100, 0)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		_, innerErr := e.Redelegate(tx, delegator, v, v, 50, 0)
		return innerErr
	})
	require.Error(t, err)
	require.True(t, poserrors.Is(err, poserrors.KindRedelegationSrcEqDest))
}

func TestRedelegate_RejectsChainedRedelegation(t *testing.T) {
	e, db := newTestEngine(t)
	v1, v2, v3, delegator := addr(1), addr(2), addr(3), addr(4)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v1, 0)
		registerValidator(t, e, tx, v2, 0)
		registerValidator(t, e, tx, v3, 0)
		if err := e.Bond(tx, delegator, v1, 100, 0); err != nil {
			return err
		}
		if _, err := e.Redelegate(tx, delegator, v1, v2, 100, 0); err != nil {
			return err
		}
		// v2's freshly-redelegated stake is still inside its slashing
		// window, so redelegating it onward to v3 must be rejected.
		_, err := e.Redelegate(tx, delegator, v2, v3, 100, 0)
		return err
	})
	require.Error(t, err)
	require.True(t, poserrors.Is(err, poserrors.KindIsChainedRedelegation))
}
