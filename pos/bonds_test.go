package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func TestBond_PromotesToConsensusOnceThresholdMet(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)
	delegator := addr(2)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, delegator, v, 50, 0)
	})
	require.NoError(t, err)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	var state postypes.ValidatorState
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		state, innerErr = e.State(tx, v, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.ValidatorStateConsensus, state)
}

func TestBond_BelowThresholdStaysBelowThreshold(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 1, 0)
	})
	require.NoError(t, err)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	var state postypes.ValidatorState
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		state, innerErr = e.State(tx, v, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.ValidatorStateBelowThreshold, state)
}

func TestBond_ZeroAmountIsNoOp(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 0, 0)
	})
	require.NoError(t, err)

	var stake postypes.Amount
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		stake, innerErr = e.validatorStakeAt(tx, v, postypes.Epoch(0).Add(e.Params().PipelineLen))
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(0), stake)
}

// consensus slot capacity (2, per testParams) is never exceeded even
// when a third validator out-bids the weakest incumbent.
func TestBond_ConsensusSetNeverExceedsCapacity(t *testing.T) {
	e, db := newTestEngine(t)
	a, b, c := addr(1), addr(2), addr(3)

	err := db.Update(func(tx *store.Tx) error {
		for _, v := range []postypes.Address{a, b, c} {
			registerValidator(t, e, tx, v, 0)
		}
		if err := e.Bond(tx, a, a, 100, 0); err != nil {
			return err
		}
		if err := e.Bond(tx, b, b, 90, 0); err != nil {
			return err
		}
		return e.Bond(tx, c, c, 95, 0)
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
	require.LessOrEqual(t, len(members), int(e.Params().MaxValidatorSlots))

	stakes := map[postypes.Address]postypes.Amount{}
	for _, m := range members {
		stakes[m.Address] = m.Stake
	}
	// b (weakest at 90) must have been demoted out in favor of c (95).
	_, bStillIn := stakes[b]
	require.False(t, bStillIn)
	_, cIn := stakes[c]
	require.True(t, cIn)
}
