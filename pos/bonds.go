package pos

import (
	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Bond implements spec §4.3: credit amount from source (defaulting to
// validator, a self-bond) to validator, effective at current+P.
func (e *Engine) Bond(tx *store.Tx, source, validator postypes.Address, amount postypes.Amount, current postypes.Epoch) error {
	if amount == 0 {
		return nil
	}
	if source.IsZero() {
		source = validator
	}
	if err := e.requireRegistered(tx, validator, current); err != nil {
		return err
	}
	if isValidator, err := e.IsRegistered(tx, source, current); err == nil && isValidator && source != validator {
		return poserrors.New(poserrors.KindSourceIsValidator, "bond source must not be another validator")
	} else if err != nil {
		return err
	}
	if err := e.requireNotInactiveThroughPipeline(tx, validator, current); err != nil {
		return err
	}

	pipeline := current.Add(e.params.PipelineLen)

	if err := e.addBond(tx, source, validator, pipeline, amount); err != nil {
		return err
	}
	if err := e.addTotalBonded(tx, validator, pipeline, amount); err != nil {
		return err
	}

	state, err := e.State(tx, validator, pipeline)
	if err != nil {
		return err
	}
	if state != postypes.ValidatorStateJailed {
		if err := e.applyValidatorSetChange(tx, validator, postypes.Delta(amount), pipeline); err != nil {
			return err
		}
	}

	if err := e.validatorDeltasField(validator).AddAtOffset(tx, postypes.Delta(amount), current, e.params.PipelineLen); err != nil {
		return err
	}
	if err := e.totalDeltasField().AddAtOffset(tx, postypes.Delta(amount), current, e.params.PipelineLen); err != nil {
		return err
	}
	return nil
}

func (e *Engine) addBond(tx *store.Tx, delegator, validator postypes.Address, epoch postypes.Epoch, amount postypes.Amount) error {
	key := bondKey(delegator, validator)
	bonds, _, err := store.GetBlob[BondMap](tx, key)
	if err != nil {
		return err
	}
	if bonds == nil {
		bonds = BondMap{}
	}
	bonds[epoch] += amount
	return store.SetBlob(tx, key, bonds)
}

func (e *Engine) addTotalBonded(tx *store.Tx, validator postypes.Address, epoch postypes.Epoch, amount postypes.Amount) error {
	key := totalBondedKey(validator)
	m, _, err := store.GetBlob[BondMap](tx, key)
	if err != nil {
		return err
	}
	if m == nil {
		m = BondMap{}
	}
	m[epoch] += amount
	return store.SetBlob(tx, key, m)
}

func (e *Engine) addTotalUnbonded(tx *store.Tx, validator postypes.Address, epoch postypes.Epoch, amount postypes.Amount) error {
	key := totalUnbondedKey(validator)
	m, _, err := store.GetBlob[BondMap](tx, key)
	if err != nil {
		return err
	}
	if m == nil {
		m = BondMap{}
	}
	m[epoch] += amount
	return store.SetBlob(tx, key, m)
}

// applyValidatorSetChange reads v's stake just before delta is
// applied, runs update_validator_set and writes the resulting
// state/position back at epoch. Used by bond/unbond/slash call sites
// once they've already decided the validator should move (i.e. is not
// Jailed).
func (e *Engine) applyValidatorSetChange(tx *store.Tx, v postypes.Address, delta postypes.Delta, epoch postypes.Epoch) error {
	preStake, err := e.validatorStakeAt(tx, v, epoch)
	if err != nil {
		return err
	}

	snap, ok, err := e.validatorSetField().GetExact(tx, epoch)
	if err != nil {
		return err
	}
	if !ok {
		snap = ValidatorSetSnapshot{}
	}
	snap.addValidator(v)

	newState, newPos, demoted, promoted := updateValidatorSet(&snap, v, preStake, delta, e.params)

	if err := e.validatorSetField().Set(tx, epoch, snap); err != nil {
		return err
	}
	if err := e.stateField(v).Set(tx, epoch, newState); err != nil {
		return err
	}
	if err := e.writePosition(tx, v, epoch, newState, newPos); err != nil {
		return err
	}
	if demoted != nil {
		if err := e.stateField(demoted.Address).Set(tx, epoch, postypes.ValidatorStateBelowCapacity); err != nil {
			return err
		}
		if err := e.writePosition(tx, demoted.Address, epoch, postypes.ValidatorStateBelowCapacity, demoted.Position); err != nil {
			return err
		}
	}
	if promoted != nil {
		if err := e.stateField(promoted.Address).Set(tx, epoch, postypes.ValidatorStateConsensus); err != nil {
			return err
		}
		if err := e.writePosition(tx, promoted.Address, epoch, postypes.ValidatorStateConsensus, promoted.Position); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writePosition(tx *store.Tx, v postypes.Address, epoch postypes.Epoch, state postypes.ValidatorState, pos uint64) error {
	if !state.IsSetMember() || state == postypes.ValidatorStateBelowThreshold {
		return e.positionField(v).Set(tx, epoch, positionValue{})
	}
	return e.positionField(v).Set(tx, epoch, positionValue{Position: pos, Present: true})
}

// validatorStakeAt computes a validator's current bonded stake at
// epoch by projecting its deltas timeline forward, matching how
// validator_deltas is defined to track exactly the same quantity the
// validator sets are ordered by.
func (e *Engine) validatorStakeAt(tx *store.Tx, v postypes.Address, epoch postypes.Epoch) (postypes.Amount, error) {
	sum, err := e.validatorDeltasField(v).Get(tx, epoch, 0)
	if err != nil {
		return 0, err
	}
	if sum < 0 {
		return 0, nil
	}
	return postypes.Amount(sum), nil
}
