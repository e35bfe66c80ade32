package pos

import (
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// VotingPower is one validator's signed-or-not status for a finalized
// block, as reported by the consensus layer (spec §6 "From consensus
// layer" log_block_rewards).
type VotingPower struct {
	Validator postypes.Address
	Power     postypes.Amount
	Signed    bool
}

// RewardsAccumulator is the per-validator running fractional reward
// share (spec §4.7); draining it at epoch boundaries and minting the
// actual tokens is out of scope (spec §1 Non-goals).
type RewardsAccumulator map[postypes.Address]postypes.Dec

// LogBlockRewards implements spec §4.7's log_block_rewards: accrue
// proposer + signer + active coefficients into the accumulator for
// one finalized block. Called exactly once per block by the
// consensus layer.
func (e *Engine) LogBlockRewards(tx *store.Tx, epoch postypes.Epoch, proposer postypes.Address, votes []VotingPower) error {
	acc, _, err := store.GetBlob[RewardsAccumulator](tx, rewardsAccumulatorKey())
	if err != nil {
		return err
	}
	if acc == nil {
		acc = RewardsAccumulator{}
	}

	var signingStake, consensusStake postypes.Amount
	for _, v := range votes {
		consensusStake += v.Power
		if v.Signed {
			signingStake += v.Power
		}
	}

	acc[proposer] = acc[proposer].Add(e.params.BlockProposerReward)

	voteReward := e.params.BlockVoteReward
	for _, v := range votes {
		if !v.Signed || signingStake == 0 {
			continue
		}
		share := voteReward.Mul(postypes.DecFromAmount(v.Power)).Quo(postypes.DecFromAmount(signingStake))
		acc[v.Validator] = acc[v.Validator].Add(share)
	}

	if consensusStake > 0 {
		activeCoef := postypes.OneDec().Add(e.params.BlockProposerReward.Add(e.params.BlockVoteReward).Mul(postypes.NewDec(-1, 0)))
		for _, v := range votes {
			share := activeCoef.Mul(postypes.DecFromAmount(v.Power)).Quo(postypes.DecFromAmount(consensusStake))
			acc[v.Validator] = acc[v.Validator].Add(share)
		}
	}

	return store.SetBlob(tx, rewardsAccumulatorKey(), acc)
}

// DrainRewardsAccumulator reads and clears the accumulator at an
// epoch boundary (spec §4.7: "the accumulator is drained at epoch
// boundaries"). Actual reward distribution is the caller's concern.
func (e *Engine) DrainRewardsAccumulator(tx *store.Tx) (RewardsAccumulator, error) {
	acc, _, err := store.GetBlob[RewardsAccumulator](tx, rewardsAccumulatorKey())
	if err != nil {
		return nil, err
	}
	if err := store.SetBlob(tx, rewardsAccumulatorKey(), RewardsAccumulator{}); err != nil {
		return nil, err
	}
	return acc, nil
}
