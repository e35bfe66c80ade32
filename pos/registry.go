package pos

import (
	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// BecomeValidatorParams collects the per-validator identity a new
// registration supplies (spec §3 "Validator").
type BecomeValidatorParams struct {
	Address             postypes.Address
	ConsensusKey        postypes.ConsensusKey
	EthHotKey           postypes.EthKey
	EthColdKey          postypes.EthKey
	CommissionRate      postypes.Dec
	MaxCommissionChange postypes.Dec
}

// BecomeValidator registers a new validator, effective at current+P
// as BelowThreshold (spec §3 "Lifecycles"); the caller's subsequent
// Bond call is what may promote it into an ordered set.
func (e *Engine) BecomeValidator(tx *store.Tx, p BecomeValidatorParams, current postypes.Epoch) error {
	if p.ConsensusKey.IsZero() {
		return poserrors.New(poserrors.KindStorage, "consensus key must not be zero")
	}

	idxKey := consensusKeyIndexKey(p.ConsensusKey)
	if existing, ok, err := store.GetBlob[postypes.Address](tx, idxKey); err != nil {
		return err
	} else if ok && existing != p.Address {
		return poserrors.New(poserrors.KindConsensusKeyAlreadyInUse, "consensus key already registered to another validator")
	}
	if err := store.SetBlob(tx, idxKey, p.Address); err != nil {
		return err
	}

	if err := e.consensusKeyField(p.Address).InitAtGenesis(tx, p.ConsensusKey, current, e.params.PipelineLen); err != nil {
		return err
	}
	if err := e.ethHotKeyField(p.Address).InitAtGenesis(tx, p.EthHotKey, current, e.params.PipelineLen); err != nil {
		return err
	}
	if err := e.ethColdKeyField(p.Address).InitAtGenesis(tx, p.EthColdKey, current, e.params.PipelineLen); err != nil {
		return err
	}
	if err := e.commissionRateField(p.Address).InitAtGenesis(tx, p.CommissionRate, current, e.params.PipelineLen); err != nil {
		return err
	}
	if err := e.stateField(p.Address).SetAtOffset(tx, postypes.ValidatorStateBelowThreshold, current, e.params.PipelineLen); err != nil {
		return err
	}

	meta := postypes.ValidatorMetadata{Address: p.Address, MaxCommissionChange: p.MaxCommissionChange}
	if err := store.SetBlob(tx, validatorMetadataKey(p.Address), meta); err != nil {
		return err
	}

	all, _, err := store.GetBlob[[]postypes.Address](tx, allValidatorsKey())
	if err != nil {
		return err
	}
	known := false
	for _, a := range all {
		known = known || a == p.Address
	}
	if !known {
		if err := store.SetBlob(tx, allValidatorsKey(), append(all, p.Address)); err != nil {
			return err
		}
	}

	snap, ok, err := e.validatorSetField().GetExact(tx, current.Add(e.params.PipelineLen))
	if err != nil {
		return err
	}
	if !ok {
		snap = ValidatorSetSnapshot{}
	}
	snap.addValidator(p.Address)
	return e.validatorSetField().Set(tx, current.Add(e.params.PipelineLen), snap)
}

// IsRegistered reports whether v has ever been registered. Unlike the
// lifecycle state (which only takes effect at current+P, spec §3
// "Lifecycles"), registration itself is visible from the moment
// become_validator is called — there is no unregister operation, so
// the metadata record written at registration time is the signal to
// check rather than the pipelined state field.
func (e *Engine) IsRegistered(tx *store.Tx, v postypes.Address, _ postypes.Epoch) (bool, error) {
	_, ok, err := store.GetBlob[postypes.ValidatorMetadata](tx, validatorMetadataKey(v))
	return ok, err
}

// State returns v's lifecycle state at epoch at.
func (e *Engine) State(tx *store.Tx, v postypes.Address, at postypes.Epoch) (postypes.ValidatorState, error) {
	s, ok, err := e.stateField(v).Get(tx, at)
	if err != nil {
		return postypes.ValidatorStateUnknown, err
	}
	if !ok {
		return postypes.ValidatorStateUnknown, nil
	}
	return s, nil
}

func (e *Engine) requireRegistered(tx *store.Tx, v postypes.Address, at postypes.Epoch) error {
	registered, err := e.IsRegistered(tx, v, at)
	if err != nil {
		return err
	}
	if !registered {
		return poserrors.New(poserrors.KindNotAValidator, "address is not a registered validator")
	}
	return nil
}

// requireNotInactiveThroughPipeline rejects bonding to a validator
// that is Inactive at any epoch in [current, current+P] (spec §4.3).
func (e *Engine) requireNotInactiveThroughPipeline(tx *store.Tx, v postypes.Address, current postypes.Epoch) error {
	for off := uint64(0); off <= e.params.PipelineLen; off++ {
		s, err := e.State(tx, v, current.Add(off))
		if err != nil {
			return err
		}
		if s == postypes.ValidatorStateInactive {
			return poserrors.New(poserrors.KindInactiveValidator, "validator is inactive")
		}
	}
	return nil
}

// LastSlashEpoch returns the most recent evidence epoch slashed
// against v, and whether v has ever been slashed.
func (e *Engine) LastSlashEpoch(tx *store.Tx, v postypes.Address) (postypes.Epoch, bool, error) {
	epoch, ok, err := store.GetBlob[postypes.Epoch](tx, lastSlashEpochKey(v))
	if err != nil {
		return 0, false, err
	}
	return epoch, ok, nil
}

// IsValidatorFrozen reports whether v refuses unbond/redelegate
// because it is still inside its slash-processing window (spec §4.7).
func (e *Engine) IsValidatorFrozen(tx *store.Tx, v postypes.Address, current postypes.Epoch) (bool, error) {
	last, ok, err := e.LastSlashEpoch(tx, v)
	if err != nil || !ok {
		return false, err
	}
	return current < last.Add(e.params.SlashProcessingOffset()), nil
}

// CommissionRate returns v's commission rate at epoch at.
func (e *Engine) CommissionRate(tx *store.Tx, v postypes.Address, at postypes.Epoch) (postypes.Dec, error) {
	rate, ok, err := e.commissionRateField(v).Get(tx, at)
	if err != nil {
		return postypes.ZeroDec(), err
	}
	if !ok {
		return postypes.ZeroDec(), poserrors.New(poserrors.KindCommissionRateNotSet, "commission rate not set")
	}
	return rate, nil
}

// ChangeCommissionRate validates the requested new rate against v's
// max_commission_change bound — compared against the rate already
// pipelined at current+P-1, not the currently-active rate; a change
// written earlier in the same epoch sits at current+P, so every change
// within one epoch is bounded against that same current+P-1 rate —
// and, if valid, schedules it at current+P (spec §3's per-validator
// commission fields).
func (e *Engine) ChangeCommissionRate(tx *store.Tx, v postypes.Address, newRate postypes.Dec, current postypes.Epoch) error {
	lastPipelined := current
	if e.params.PipelineLen > 0 {
		lastPipelined = current.Add(e.params.PipelineLen - 1)
	}
	cur, err := e.CommissionRate(tx, v, lastPipelined)
	if err != nil {
		return err
	}
	meta, ok, err := store.GetBlob[postypes.ValidatorMetadata](tx, validatorMetadataKey(v))
	if err != nil {
		return err
	}
	if !ok {
		return poserrors.New(poserrors.KindNotAValidator, "address is not a registered validator")
	}
	diff := newRate.Add(cur.Mul(postypes.NewDec(-1, 0)))
	if diff.LT(postypes.ZeroDec()) {
		diff = diff.Mul(postypes.NewDec(-1, 0))
	}
	if diff.GT(meta.MaxCommissionChange) {
		return poserrors.New(poserrors.KindCommissionChangeTooLarge, "commission rate change exceeds max_commission_change")
	}
	return e.commissionRateField(v).SetAtOffset(tx, newRate, current, e.params.PipelineLen)
}
