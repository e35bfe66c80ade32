package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// testParams returns parameters small enough to walk epoch-by-epoch
// in tests without the real chain's pipeline/unbonding magnitudes.
func testParams() postypes.PosParams {
	return postypes.PosParams{
		PipelineLen:                 2,
		UnbondingLen:                3,
		CubicSlashingWindowLength:   1,
		MaxValidatorSlots:           2,
		ValidatorStakeThreshold:     10,
		TmVotesPerToken:             postypes.NewDec(1, 0),
		BlockProposerReward:         postypes.NewDec(125, 3),
		BlockVoteReward:             postypes.NewDec(1, 1),
		MaxCommissionChangePerEpoch: postypes.NewDec(1, 1),
		StoreValidatorSetsLen:       5,
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, testParams()), db
}

func addr(b byte) postypes.Address {
	var a postypes.Address
	a[len(a)-1] = b
	return a
}

func consensusKey(b byte) postypes.ConsensusKey {
	var k postypes.ConsensusKey
	k[len(k)-1] = b
	return k
}

func registerValidator(t *testing.T, e *Engine, tx *store.Tx, v postypes.Address, current postypes.Epoch) {
	t.Helper()
	var seed byte
	if len(v) > 0 {
		seed = v[len(v)-1]
	}
	err := e.BecomeValidator(tx, BecomeValidatorParams{
		Address:             v,
		ConsensusKey:        consensusKey(seed),
		CommissionRate:      postypes.NewDec(1, 1),
		MaxCommissionChange: postypes.NewDec(1, 1),
	}, current)
	require.NoError(t, err)
}
