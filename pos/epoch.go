package pos

import (
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// ValidatorSetUpdate is the engine's abstract update variant handed to
// the consensus layer (spec §6): either a validator now has this
// voting power, or it has left the consensus set entirely.
type ValidatorSetUpdate struct {
	ConsensusKey postypes.ConsensusKey
	// Deactivated is true when this entry means "remove this
	// consensus key", in which case Power is meaningless.
	Deactivated bool
	Power       int64
}

// OnEpochTransition runs steps 1-5 of spec §4.8's fixed sequence at
// the first block of epoch `e`; step 6 (emitting validator-set
// updates) is ValidatorSetUpdates, which the caller invokes separately.
// Step order is consensus-critical and must not be reordered by callers.
func (e *Engine) OnEpochTransition(tx *store.Tx, epoch postypes.Epoch) (RewardsAccumulator, error) {
	// 1. copy sets from epoch-1 to epoch+P, so epoch+P exists even with
	// no activity. A pipeline write at an epoch with no stored set
	// starts from an empty snapshot rather than copying one forward.
	if err := e.copyValidatorSetsAndPositions(tx, epoch.Prev(), epoch.Add(e.params.PipelineLen)); err != nil {
		return nil, err
	}

	// 2. store_total_consensus_stake(e)
	if err := e.storeTotalConsensusStake(tx, epoch); err != nil {
		return nil, err
	}

	// 3. process_slashes(e)
	if err := e.ProcessSlashes(tx, epoch); err != nil {
		return nil, err
	}

	// 4. drain rewards accumulator (distribution itself is out of scope)
	drained, err := e.DrainRewardsAccumulator(tx)
	if err != nil {
		return nil, err
	}

	// 5. purge_validator_sets_for_old_epoch(e)
	if e.params.StoreValidatorSetsLen > 0 && uint64(epoch) >= e.params.StoreValidatorSetsLen {
		old := epoch.Sub(e.params.StoreValidatorSetsLen)
		if err := e.validatorSetField().DeleteEpoch(tx, old); err != nil {
			return nil, err
		}
	}

	return drained, nil
}

func (e *Engine) storeTotalConsensusStake(tx *store.Tx, epoch postypes.Epoch) error {
	snap, ok, err := e.validatorSetField().GetExact(tx, epoch)
	if err != nil {
		return err
	}
	if !ok {
		return e.totalConsensusStakeField().Set(tx, epoch, 0)
	}
	var sum postypes.Amount
	for _, m := range snap.Consensus {
		sum += m.Stake
	}
	return e.totalConsensusStakeField().Set(tx, epoch, sum)
}

// ValidatorSetUpdates implements spec §6's validator_set_update: the
// diff of Consensus(e+1) minus Consensus(e), suppressing entries whose
// integer voting power under tm_votes_per_token is unchanged.
func (e *Engine) ValidatorSetUpdates(tx *store.Tx, epoch postypes.Epoch) ([]ValidatorSetUpdate, error) {
	before, okBefore, err := e.validatorSetField().GetExact(tx, epoch)
	if err != nil {
		return nil, err
	}
	after, okAfter, err := e.validatorSetField().GetExact(tx, epoch.Add(1))
	if err != nil {
		return nil, err
	}
	if !okAfter {
		return nil, nil
	}
	if !okBefore {
		before = ValidatorSetSnapshot{}
	}

	beforePower := map[postypes.Address]int64{}
	for _, m := range before.Consensus {
		beforePower[m.Address] = e.votingPower(m.Stake)
	}
	afterPower := map[postypes.Address]int64{}
	for _, m := range after.Consensus {
		afterPower[m.Address] = e.votingPower(m.Stake)
	}

	var updates []ValidatorSetUpdate
	for addr, power := range afterPower {
		if prev, ok := beforePower[addr]; ok && prev == power {
			continue
		}
		key, ok, err := e.consensusKeyField(addr).Get(tx, epoch.Add(1))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		updates = append(updates, ValidatorSetUpdate{ConsensusKey: key, Power: power})
	}
	for addr := range beforePower {
		if _, ok := afterPower[addr]; ok {
			continue
		}
		key, ok, err := e.consensusKeyField(addr).Get(tx, epoch)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		updates = append(updates, ValidatorSetUpdate{ConsensusKey: key, Deactivated: true})
	}
	return updates, nil
}

func (e *Engine) votingPower(stake postypes.Amount) int64 {
	return int64(e.params.TmVotesPerToken.MulCeil(stake))
}
