package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func TestComputeCubicSlashRate_ScalesWithInfractingStakeRatio(t *testing.T) {
	e, db := newTestEngine(t)
	v1, v2 := addr(1), addr(2)
	infractionEpoch := postypes.Epoch(2)

	var rate postypes.Dec
	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v1, 0)
		registerValidator(t, e, tx, v2, 0)
		if err := e.Bond(tx, v1, v1, 100, 0); err != nil {
			return err
		}
		if err := e.Bond(tx, v2, v2, 900, 0); err != nil {
			return err
		}
		if _, err := e.OnEpochTransition(tx, postypes.Epoch(1)); err != nil {
			return err
		}
		if _, err := e.OnEpochTransition(tx, infractionEpoch); err != nil {
			return err
		}
		if err := e.Slash(tx, infractionEpoch, infractionEpoch, 1, postypes.SlashKindDuplicateVote, v1, infractionEpoch); err != nil {
			return err
		}
		var innerErr error
		rate, innerErr = e.computeCubicSlashRate(tx, infractionEpoch)
		return innerErr
	})
	require.NoError(t, err)

	expected := postypes.NewDec(9, 2) // 9 * (100/1000)^2 = 0.09
	require.Equal(t, expected.String(), rate.String())
}

func TestComputeCubicSlashRate_ZeroWithNoInfractions(t *testing.T) {
	e, db := newTestEngine(t)
	v1 := addr(1)
	infractionEpoch := postypes.Epoch(2)

	var rate postypes.Dec
	err := db.Update(func(tx *store.Tx) error {
		registerValidator(t, e, tx, v1, 0)
		if err := e.Bond(tx, v1, v1, 100, 0); err != nil {
			return err
		}
		if _, err := e.OnEpochTransition(tx, postypes.Epoch(1)); err != nil {
			return err
		}
		if _, err := e.OnEpochTransition(tx, infractionEpoch); err != nil {
			return err
		}
		var innerErr error
		rate, innerErr = e.computeCubicSlashRate(tx, infractionEpoch)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.ZeroDec().String(), rate.String())
}

func TestSlash_JailsValidatorThroughPipeline(t *testing.T) {
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

	pipeline := current.Add(e.Params().PipelineLen)
	err = db.View(func(tx *store.Tx) error {
		for epoch := current; epoch <= pipeline; epoch = epoch.Add(1) {
			state, innerErr := e.State(tx, v, epoch)
			if innerErr != nil {
				return innerErr
			}
			require.Equal(t, postypes.ValidatorStateJailed, state, "epoch %d", epoch)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSlash_BaseRateFloorsDuplicateVote(t *testing.T) {
	require.True(t, postypes.SlashKindDuplicateVote.BaseRate().GT(postypes.ZeroDec()))
}
