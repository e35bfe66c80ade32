package pos

import (
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// BondEntryView is one row of a BondsAndUnbonds read, covering either
// a live bond or a pending unbond, already slash-adjusted.
type BondEntryView struct {
	Validator     postypes.Address
	Start         postypes.Epoch
	Withdraw      postypes.Epoch // zero for a still-bonded entry
	Amount        postypes.Amount
	SlashedAmount postypes.Amount
}

// BondsAndUnbonds implements the supplemented read-model: every bond
// and pending unbond of delegator across every validator it has ever
// bonded to, with the post-slash amount already computed.
func (e *Engine) BondsAndUnbonds(tx *store.Tx, delegator postypes.Address, current postypes.Epoch) ([]BondEntryView, error) {
	allKey := allValidatorsKey()
	allValidators, ok, err := store.GetBlob[[]postypes.Address](tx, allKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var out []BondEntryView
	for _, v := range allValidators {
		bonds, _, err := store.GetBlob[BondMap](tx, bondKey(delegator, v))
		if err != nil {
			return nil, err
		}
		slashes, _, err := store.GetBlob[[]postypes.Slash](tx, validatorSlashesKey(v))
		if err != nil {
			return nil, err
		}
		for start, amount := range bonds {
			var relevant []postypes.Slash
			for _, s := range slashes {
				if s.Epoch >= start {
					relevant = append(relevant, s)
				}
			}
			slashed := applyListSlashes(relevant, amount, e.params.SlashProcessingOffset())
			out = append(out, BondEntryView{Validator: v, Start: start, Amount: amount, SlashedAmount: slashed})
		}

		unbonds, _, err := store.GetBlob[UnbondMap](tx, unbondKeyPrefix(delegator, v))
		if err != nil {
			return nil, err
		}
		for _, ent := range unbonds.Entries {
			var relevant []postypes.Slash
			cutoff := ent.Withdraw.Sub(e.params.UnbondingLen + e.params.CubicSlashingWindowLength)
			for _, s := range slashes {
				if s.Epoch >= ent.Start && s.Epoch <= cutoff {
					relevant = append(relevant, s)
				}
			}
			slashed := applyListSlashes(relevant, ent.Amount, e.params.SlashProcessingOffset())
			out = append(out, BondEntryView{Validator: v, Start: ent.Start, Withdraw: ent.Withdraw, Amount: ent.Amount, SlashedAmount: slashed})
		}
	}
	return out, nil
}

// FindValidatorSlashes returns validator's persisted slash list. A
// slash is appended to that list only when ProcessSlashes finalizes
// its rate, so slashes still waiting in the enqueued-slashes queue
// are not included.
func (e *Engine) FindValidatorSlashes(tx *store.Tx, validator postypes.Address) ([]postypes.Slash, error) {
	slashes, _, err := store.GetBlob[[]postypes.Slash](tx, validatorSlashesKey(validator))
	return slashes, err
}

// ConsensusSetMembers returns the Consensus partition as of epoch at,
// for the consensus-layer boundary's genesis_validator_set emission.
func (e *Engine) ConsensusSetMembers(tx *store.Tx, at postypes.Epoch) ([]SetMember, error) {
	snap, ok, err := e.validatorSetField().GetExact(tx, at)
	if err != nil || !ok {
		return nil, err
	}
	return snap.Consensus, nil
}

// ConsensusKeyAt exposes a validator's consensus key at epoch at, for
// the consensus-layer boundary adapter.
func (e *Engine) ConsensusKeyAt(tx *store.Tx, v postypes.Address, at postypes.Epoch) (postypes.ConsensusKey, bool, error) {
	return e.consensusKeyField(v).Get(tx, at)
}

// VotingPowerFor converts a stake amount to Tendermint voting power
// under the engine's tm_votes_per_token parameter.
func (e *Engine) VotingPowerFor(stake postypes.Amount) int64 {
	return e.votingPower(stake)
}

// AllValidators returns the registry-wide address list as of epoch at.
func (e *Engine) AllValidators(tx *store.Tx, at postypes.Epoch) ([]postypes.Address, error) {
	snap, ok, err := e.validatorSetField().GetExact(tx, at)
	if err != nil || !ok {
		return nil, err
	}
	return snap.AllValidators, nil
}

// GenesisValidator is one entry of the genesis validator set (spec
// §6's genesis_validator_set ingestion).
type GenesisValidator struct {
	BecomeValidatorParams
	Stake postypes.Amount
}

// InitGenesis seeds the engine at epoch 0 with the given validators,
// placing each directly into its set partition by stake (spec §9
// Open Question: genesis validators below threshold are admitted as
// BelowThreshold, resolved per SPEC_FULL.md to follow the original).
func (e *Engine) InitGenesis(tx *store.Tx, validators []GenesisValidator, params postypes.PosParams) error {
	e.params = params
	genesis := postypes.Epoch(0)

	snap := ValidatorSetSnapshot{}
	for _, gv := range validators {
		if err := e.BecomeValidator(tx, gv.BecomeValidatorParams, genesis); err != nil {
			return err
		}
		snap.addValidator(gv.Address)
		state, _, demoted := insertValidatorIntoValidatorSet(&snap, gv.Address, gv.Stake, params)
		if err := e.stateField(gv.Address).InitAtGenesis(tx, state, genesis, params.PipelineLen); err != nil {
			return err
		}
		if demoted != nil {
			if err := e.stateField(demoted.Address).InitAtGenesis(tx, postypes.ValidatorStateBelowCapacity, genesis, params.PipelineLen); err != nil {
				return err
			}
		}
		if err := e.validatorDeltasField(gv.Address).AddAt(tx, postypes.Delta(gv.Stake), genesis); err != nil {
			return err
		}
		if err := e.totalDeltasField().AddAt(tx, postypes.Delta(gv.Stake), genesis); err != nil {
			return err
		}
		if err := e.addTotalBonded(tx, gv.Address, genesis, gv.Stake); err != nil {
			return err
		}
		if err := e.addBond(tx, gv.Address, gv.Address, genesis, gv.Stake); err != nil {
			return err
		}
	}

	for i := range snap.Consensus {
		if err := e.writePosition(tx, snap.Consensus[i].Address, genesis, postypes.ValidatorStateConsensus, snap.Consensus[i].Position); err != nil {
			return err
		}
	}
	for i := range snap.BelowCapacity {
		if err := e.writePosition(tx, snap.BelowCapacity[i].Address, genesis, postypes.ValidatorStateBelowCapacity, snap.BelowCapacity[i].Position); err != nil {
			return err
		}
	}

	// validatorSetField is read with the non-projecting GetExact
	// everywhere (applyValidatorSetChange, OnEpochTransition,
	// ValidatorSetUpdates, queries): seed the whole pipeline window, not
	// just genesis, so a Bond/Unbond/query at any epoch in [0, P] during
	// the chain's first epoch sees the genesis set rather than an empty
	// one.
	if err := e.validatorSetField().InitAtGenesis(tx, snap, genesis, params.PipelineLen); err != nil {
		return err
	}
	return e.storeTotalConsensusStake(tx, genesis)
}
