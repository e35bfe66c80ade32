package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func bondThenUnbond(t *testing.T, e *Engine, db *store.DB, v postypes.Address, bondAmount, unbondAmount postypes.Amount) postypes.ResultSlashing {
	t.Helper()
	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, bondAmount, 0)
	})
	require.NoError(t, err)

	var result postypes.ResultSlashing
	err = db.Update(func(tx *store.Tx) error {
		var innerErr error
		result, innerErr = e.Unbond(tx, v, v, unbondAmount, 0, false)
		return innerErr
	})
	require.NoError(t, err)
	return result
}

func TestUnbond_ExactRemainingSucceeds(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)
	result := bondThenUnbond(t, e, db, v, 100, 100)
	require.Equal(t, postypes.Amount(100), result.Sum)
}

func TestUnbond_MoreThanBondedFails(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 100, 0)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		_, innerErr := e.Unbond(tx, v, v, 101, 0, false)
		return innerErr
	})
	require.Error(t, err)
	require.True(t, poserrors.Is(err, poserrors.KindUnbondAmountTooLarge))
}

func TestUnbond_ZeroAmountIsNoOp(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 100, 0)
	})
	require.NoError(t, err)

	var result postypes.ResultSlashing
	err = db.Update(func(tx *store.Tx) error {
		var innerErr error
		result, innerErr = e.Unbond(tx, v, v, 0, 0, false)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(0), result.Sum)
}

// TestUnbond_PromotesBestBelowCapacityValidator exercises spec §8
// scenario 2: a Consensus member's stake drop below a BelowCapacity
// challenger's must promote that challenger, not just reinsert the
// shrunken validator back into the freed slot.
func TestUnbond_PromotesBestBelowCapacityValidator(t *testing.T) {
	e, db := newTestEngine(t)
	v1, v2, v3 := addr(1), addr(2), addr(3)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v1, 0)
		registerValidator(t, e, tx, v2, 0)
		registerValidator(t, e, tx, v3, 0)
		if err := e.Bond(tx, v1, v1, 55, 0); err != nil {
			return err
		}
		if err := e.Bond(tx, v3, v3, 60, 0); err != nil {
			return err
		}
		return e.Bond(tx, v2, v2, 50, 0)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		_, innerErr := e.Unbond(tx, v3, v3, 50, 0, false)
		return innerErr
	})
	require.NoError(t, err)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	var members []SetMember
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		members, innerErr = e.ConsensusSetMembers(tx, pipeline)
		return innerErr
	})
	require.NoError(t, err)

	stakes := map[postypes.Address]postypes.Amount{}
	for _, m := range members {
		stakes[m.Address] = m.Stake
	}
	require.Equal(t, postypes.Amount(55), stakes[v1])
	require.Equal(t, postypes.Amount(50), stakes[v2])
	_, v3StillConsensus := stakes[v3]
	require.False(t, v3StillConsensus)

	var v3State postypes.ValidatorState
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		v3State, innerErr = e.State(tx, v3, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.ValidatorStateBelowCapacity, v3State)
}

func TestWithdraw_BeforeWithdrawableOffsetReturnsZero(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)
	bondThenUnbond(t, e, db, v, 100, 100)

	var withdrawn postypes.Amount
	err := db.Update(func(tx *store.Tx) error {
		var innerErr error
		withdrawn, innerErr = e.Withdraw(tx, v, v, 0)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(0), withdrawn)
}

func TestWithdraw_AtWithdrawableOffsetReturnsFullAmount(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)
	bondThenUnbond(t, e, db, v, 100, 100)

	withdrawEpoch := postypes.Epoch(0).Add(e.Params().WithdrawableOffset())
	var withdrawn postypes.Amount
	err := db.Update(func(tx *store.Tx) error {
		var innerErr error
		withdrawn, innerErr = e.Withdraw(tx, v, v, withdrawEpoch)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(100), withdrawn)
}
