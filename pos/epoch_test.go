package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func TestOnEpochTransition_AdvancesTotalConsensusStake(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 100, 0)
	})
	require.NoError(t, err)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	err = db.Update(func(tx *store.Tx) error {
		for epoch := postypes.Epoch(1); epoch <= pipeline; epoch = epoch.Add(1) {
			if _, innerErr := e.OnEpochTransition(tx, epoch); innerErr != nil {
				return innerErr
			}
		}
		return nil
	})
	require.NoError(t, err)

	var total postypes.Amount
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		total, _, innerErr = e.totalConsensusStakeField().Get(tx, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.Amount(100), total)
}

func TestValidatorSetUpdates_EmitsNewConsensusMember(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v, 0)
		return e.Bond(tx, v, v, 100, 0)
	})
	require.NoError(t, err)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	var updates []ValidatorSetUpdate
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		updates, innerErr = e.ValidatorSetUpdates(tx, pipeline.Sub(1))
		return innerErr
	})
	require.NoError(t, err)

	found := false
	for _, u := range updates {
		if u.ConsensusKey == consensusKey(1) && !u.Deactivated && u.Power > 0 {
			found = true
		}
	}
	require.True(t, found)
}
