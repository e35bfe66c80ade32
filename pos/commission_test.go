package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

func TestChangeCommissionRate_WithinMaxChangeSucceeds(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		return e.BecomeValidator(tx, BecomeValidatorParams{
			Address:             v,
			ConsensusKey:        consensusKey(1),
			CommissionRate:      postypes.NewDec(10, 2),
			MaxCommissionChange: postypes.NewDec(5, 2),
		}, 0)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		return e.ChangeCommissionRate(tx, v, postypes.NewDec(14, 2), 0)
	})
	require.NoError(t, err)

	pipeline := postypes.Epoch(0).Add(e.Params().PipelineLen)
	var rate postypes.Dec
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		rate, innerErr = e.CommissionRate(tx, v, pipeline)
		return innerErr
	})
	require.NoError(t, err)
	require.Equal(t, postypes.NewDec(14, 2).String(), rate.String())
}

func TestChangeCommissionRate_ExceedsMaxChangeFails(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		return e.BecomeValidator(tx, BecomeValidatorParams{
			Address:             v,
			ConsensusKey:        consensusKey(1),
			CommissionRate:      postypes.NewDec(10, 2),
			MaxCommissionChange: postypes.NewDec(5, 2),
		}, 0)
	})
	require.NoError(t, err)

	err = db.Update(func(tx *store.Tx) error {
		return e.ChangeCommissionRate(tx, v, postypes.NewDec(20, 2), 0)
	})
	require.Error(t, err)
	require.True(t, poserrors.Is(err, poserrors.KindCommissionChangeTooLarge))
}

func TestChangeCommissionRate_UnregisteredValidatorFails(t *testing.T) {
	e, db := newTestEngine(t)
	v := addr(1)

	err := db.Update(func(tx *store.Tx) error {
		return e.ChangeCommissionRate(tx, v, postypes.NewDec(10, 2), 0)
	})
	require.Error(t, err)
}
