package pos

import (
	"sort"

	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// bondsForRemoval is findBondsToRemove's result (spec §4.4 step 1).
type bondsForRemoval struct {
	FullEpochs     map[postypes.Epoch]bool
	PartialEpoch   postypes.Epoch
	HasPartial     bool
	PartialRemains postypes.Amount
}

// findBondsToRemove walks bonds in descending epoch order, consuming
// amount, mirroring the original's find_bonds_to_remove.
func findBondsToRemove(bonds BondMap, amount postypes.Amount) bondsForRemoval {
	epochs := make([]postypes.Epoch, 0, len(bonds))
	for e := range bonds {
		epochs = append(epochs, e)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] > epochs[j] })

	res := bondsForRemoval{FullEpochs: map[postypes.Epoch]bool{}}
	remaining := amount
	for _, epoch := range epochs {
		if remaining == 0 {
			break
		}
		bondAmount := bonds[epoch]
		if bondAmount == 0 {
			continue
		}
		toUnbond := postypes.Min(bondAmount, remaining)
		if toUnbond == bondAmount {
			res.FullEpochs[epoch] = true
		} else {
			res.HasPartial = true
			res.PartialEpoch = epoch
			res.PartialRemains = bondAmount - toUnbond
		}
		remaining = remaining.Sub(toUnbond)
	}
	return res
}

// ModifiedRedelegation is spec §4.4 step 2's ModifiedRedelegation: the
// description of which source tranches of a redelegated bond are
// fully consumed by an unbond, and which single tranche is partially
// consumed.
type ModifiedRedelegation struct {
	HasEpoch             bool
	Epoch                postypes.Epoch
	ValidatorsToRemove   map[postypes.Address]bool
	HasValidatorToModify bool
	ValidatorToModify    postypes.Address
	EpochsToRemove       map[postypes.Epoch]bool
	HasEpochToModify     bool
	EpochToModify        postypes.Epoch
	HasNewAmount         bool
	NewAmount            postypes.Amount
}

// computeModifiedRedelegation mirrors the original's function of the
// same name: given the redelegated-bonds entry for one bond start
// epoch, decide which (src, src_start) tranches are fully or
// partially consumed by unbonding amountToUnbond from that epoch.
func computeModifiedRedelegation(redelegated RedelegatedAmounts, startEpoch postypes.Epoch, amountToUnbond postypes.Amount) ModifiedRedelegation {
	mr := ModifiedRedelegation{
		HasEpoch:           true,
		Epoch:              startEpoch,
		ValidatorsToRemove: map[postypes.Address]bool{},
	}

	var total postypes.Amount
	srcs := make([]postypes.Address, 0, len(redelegated))
	for src, byStart := range redelegated {
		srcs = append(srcs, src)
		for _, amt := range byStart {
			total += amt
		}
	}
	if total <= amountToUnbond {
		return mr
	}
	sort.Slice(srcs, func(i, j int) bool { return string(srcs[i][:]) < string(srcs[j][:]) })

	remaining := amountToUnbond
	for _, src := range srcs {
		if remaining == 0 {
			break
		}
		byStart := redelegated[src]
		var totalSrc postypes.Amount
		for _, amt := range byStart {
			totalSrc += amt
		}
		mr.ValidatorsToRemove[src] = true
		if totalSrc <= remaining {
			remaining = remaining.Sub(totalSrc)
			continue
		}
		removal := findBondsToRemove(BondMap(byStart), remaining)
		remaining = 0
		mr.HasValidatorToModify = true
		mr.ValidatorToModify = src
		mr.EpochsToRemove = removal.FullEpochs
		if removal.HasPartial {
			if mr.EpochsToRemove == nil {
				mr.EpochsToRemove = map[postypes.Epoch]bool{}
			}
			mr.EpochsToRemove[removal.PartialEpoch] = true
			mr.HasEpochToModify = true
			mr.EpochToModify = removal.PartialEpoch
			mr.HasNewAmount = true
			mr.NewAmount = removal.PartialRemains
		}
	}
	return mr
}

// applyModifiedRedelegation splits bonds into what is removed (to
// become part of the redelegated-unbonds map) and what remains (to be
// written back to redelegated-bonds), per spec §4.4 step 4.
func applyModifiedRedelegation(bonds RedelegatedAmounts, mr ModifiedRedelegation) (removed, remaining RedelegatedAmounts) {
	removed = RedelegatedAmounts{}
	remaining = RedelegatedAmounts{}
	for src, byStart := range bonds {
		cp := map[postypes.Epoch]postypes.Amount{}
		for e, a := range byStart {
			cp[e] = a
		}
		remaining[src] = cp
	}

	if len(mr.ValidatorsToRemove) == 0 {
		// total_redelegated <= amount_to_unbond: everything goes.
		return bonds, RedelegatedAmounts{}
	}

	for src := range mr.ValidatorsToRemove {
		if mr.HasValidatorToModify && src == mr.ValidatorToModify {
			continue
		}
		removed[src] = bonds[src]
		delete(remaining, src)
	}

	if mr.HasValidatorToModify {
		vm := mr.ValidatorToModify
		removedForVM := map[postypes.Epoch]postypes.Amount{}
		for epoch := range mr.EpochsToRemove {
			if mr.HasEpochToModify && epoch == mr.EpochToModify {
				continue
			}
			removedForVM[epoch] = bonds[vm][epoch]
			delete(remaining[vm], epoch)
		}
		if mr.HasEpochToModify {
			full := bonds[vm][mr.EpochToModify]
			removedForVM[mr.EpochToModify] = full.Sub(mr.NewAmount)
			if remaining[vm] == nil {
				remaining[vm] = map[postypes.Epoch]postypes.Amount{}
			}
			remaining[vm][mr.EpochToModify] = mr.NewAmount
		}
		removed[vm] = removedForVM
	}
	return removed, remaining
}

// Unbond implements spec §4.4: schedule amount of validator's stake
// bonded by source for return, producing a ResultSlashing of the net
// amount actually owed once every historical slash is applied.
func (e *Engine) Unbond(tx *store.Tx, source, validator postypes.Address, amount postypes.Amount, current postypes.Epoch, isRedelegation bool) (postypes.ResultSlashing, error) {
	result := postypes.NewResultSlashing()
	if amount == 0 {
		return result, nil
	}
	if source.IsZero() {
		source = validator
	}
	if err := e.requireRegistered(tx, validator, current); err != nil {
		return result, err
	}
	if frozen, err := e.IsValidatorFrozen(tx, validator, current); err != nil {
		return result, err
	} else if frozen {
		return result, poserrors.New(poserrors.KindValidatorFrozen, "validator is frozen")
	}
	if isValidator, err := e.IsRegistered(tx, source, current); err == nil && isValidator && source != validator {
		return result, poserrors.New(poserrors.KindSourceIsValidator, "unbond source must not be another validator")
	} else if err != nil {
		return result, err
	}

	pipeline := current.Add(e.params.PipelineLen)
	bondKeyBytes := bondKey(source, validator)
	bonds, _, err := store.GetBlob[BondMap](tx, bondKeyBytes)
	if err != nil {
		return result, err
	}

	var remainingAtPipeline postypes.Amount
	for _, a := range bonds {
		remainingAtPipeline += a
	}
	if amount > remainingAtPipeline {
		return result, poserrors.New(poserrors.KindUnbondAmountTooLarge, "unbond amount exceeds remaining bond at pipeline")
	}

	removal := findBondsToRemove(bonds, amount)

	type tranche struct {
		epoch  postypes.Epoch
		amount postypes.Amount
	}
	var tranches []tranche
	for epoch := range removal.FullEpochs {
		tranches = append(tranches, tranche{epoch: epoch, amount: bonds[epoch]})
	}
	if removal.HasPartial {
		full := bonds[removal.PartialEpoch]
		tranches = append(tranches, tranche{epoch: removal.PartialEpoch, amount: full.Sub(removal.PartialRemains)})
	}

	withdrawEpoch := current.Add(e.params.WithdrawableOffset())

	unbonds, _, err := store.GetBlob[UnbondMap](tx, unbondKeyPrefix(source, validator))
	if err != nil {
		return result, err
	}

	delegRedelKey := delegatorRedelegatedBondsKey(source, validator)
	delegRedel, _, err := store.GetBlob[RedelegatedBondsMap](tx, delegRedelKey)
	if err != nil {
		return result, err
	}
	if delegRedel == nil {
		delegRedel = RedelegatedBondsMap{}
	}
	delegRedelUnbondKey := delegatorRedelegatedUnbondsKey(source, validator)
	delegRedelUnbond, _, err := store.GetBlob[RedelegatedBondsMap](tx, delegRedelUnbondKey)
	if err != nil {
		return result, err
	}
	if delegRedelUnbond == nil {
		delegRedelUnbond = RedelegatedBondsMap{}
	}

	slashes, _, err := store.GetBlob[[]postypes.Slash](tx, validatorSlashesKey(validator))
	if err != nil {
		return result, err
	}

	for _, t := range tranches {
		// remove the plain bond
		bonds[t.epoch] = bonds[t.epoch] - t.amount
		if bonds[t.epoch] == 0 {
			delete(bonds, t.epoch)
		}

		redelegatedAtEpoch := delegRedel[t.epoch]
		var mr ModifiedRedelegation
		hasRedelegated := len(redelegatedAtEpoch) > 0
		if hasRedelegated {
			mr = computeModifiedRedelegation(redelegatedAtEpoch, t.epoch, t.amount)
			removedRedel, remainingRedel := applyModifiedRedelegation(redelegatedAtEpoch, mr)
			if len(remainingRedel) == 0 {
				delete(delegRedel, t.epoch)
			} else {
				delegRedel[t.epoch] = remainingRedel
			}
			if len(removedRedel) > 0 {
				for src, byStart := range removedRedel {
					for start, amt := range byStart {
						delegRedelUnbond.add(t.epoch, src, start, amt)
						if err := e.moveRedelegatedUnbondIndices(tx, validator, src, t.epoch, start, amt); err != nil {
							return result, err
						}
					}
				}
			}
		}

		if !isRedelegation {
			unbonds.add(t.epoch, withdrawEpoch, t.amount)
		}

		if err := e.addTotalUnbonded(tx, validator, pipeline, t.amount); err != nil {
			return result, err
		}

		var redelegatedTotal postypes.Amount
		for _, byStart := range redelegatedAtEpoch {
			for _, a := range byStart {
				redelegatedTotal += a
			}
		}
		nonRedelegated := t.amount.Sub(redelegatedTotal)
		remaining := applyListSlashes(slashes, nonRedelegated, e.params.SlashProcessingOffset())
		if hasRedelegated {
			remaining += e.foldAndSlashRedelegatedBonds(slashes, redelegatedAtEpoch, t.epoch, func(src postypes.Address) []postypes.Slash {
				srcSlashes, _, _ := store.GetBlob[[]postypes.Slash](tx, validatorSlashesKey(src))
				return srcSlashes
			})
		}
		result.Add(t.epoch, remaining)
	}

	if err := store.SetBlob(tx, bondKeyBytes, bonds); err != nil {
		return result, err
	}
	if err := store.SetBlob(tx, unbondKeyPrefix(source, validator), unbonds); err != nil {
		return result, err
	}
	if err := store.SetBlob(tx, delegRedelKey, delegRedel); err != nil {
		return result, err
	}
	if err := store.SetBlob(tx, delegRedelUnbondKey, delegRedelUnbond); err != nil {
		return result, err
	}

	state, err := e.State(tx, validator, pipeline)
	if err != nil {
		return result, err
	}
	if state != postypes.ValidatorStateJailed {
		if err := e.applyValidatorSetChange(tx, validator, -postypes.Delta(result.Sum), pipeline); err != nil {
			return result, err
		}
	}
	if err := e.validatorDeltasField(validator).AddAtOffset(tx, -postypes.Delta(result.Sum), current, e.params.PipelineLen); err != nil {
		return result, err
	}
	if err := e.totalDeltasField().AddAtOffset(tx, -postypes.Delta(result.Sum), current, e.params.PipelineLen); err != nil {
		return result, err
	}
	return result, nil
}

// moveRedelegatedUnbondIndices mirrors the destination-side and
// source-side redelegation indices (validator_total_redelegated_*,
// validator_outgoing_redelegations) when a redelegated tranche is
// unbonded, per spec §4.4 step 4 "mirror-wise".
func (e *Engine) moveRedelegatedUnbondIndices(tx *store.Tx, dest, src postypes.Address, bondEpoch, srcStart postypes.Epoch, amount postypes.Amount) error {
	bondedKey := validatorTotalRedelegatedBondedKey(dest)
	bonded, _, err := store.GetBlob[RedelegatedBondsMap](tx, bondedKey)
	if err != nil {
		return err
	}
	if bonded != nil {
		if byEnd, ok := bonded[bondEpoch]; ok {
			if byStart, ok := byEnd[src]; ok {
				if a, ok := byStart[srcStart]; ok {
					remaining := a.Sub(amount)
					if remaining == 0 {
						delete(byStart, srcStart)
					} else {
						byStart[srcStart] = remaining
					}
					if len(byStart) == 0 {
						delete(byEnd, src)
					}
					if len(byEnd) == 0 {
						delete(bonded, bondEpoch)
					}
				}
			}
		}
		if err := store.SetBlob(tx, bondedKey, bonded); err != nil {
			return err
		}
	}

	unbondedKey := validatorTotalRedelegatedUnbondedKey(dest)
	unbonded, _, err := store.GetBlob[RedelegatedBondsMap](tx, unbondedKey)
	if err != nil {
		return err
	}
	if unbonded == nil {
		unbonded = RedelegatedBondsMap{}
	}
	unbonded.add(bondEpoch, src, srcStart, amount)
	return store.SetBlob(tx, unbondedKey, unbonded)
}
