package pos

import (
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Withdraw implements spec §4.6.4: collect every unbond of
// (source, validator) whose withdraw_epoch has arrived, compute the
// post-slash amount owed for each and return the total, removing the
// consumed entries.
func (e *Engine) Withdraw(tx *store.Tx, source, validator postypes.Address, current postypes.Epoch) (postypes.Amount, error) {
	if source.IsZero() {
		source = validator
	}
	if err := e.requireRegistered(tx, validator, current); err != nil {
		return 0, err
	}

	unbondsKey := unbondKeyPrefix(source, validator)
	unbonds, ok, err := store.GetBlob[UnbondMap](tx, unbondsKey)
	if err != nil || !ok {
		return 0, err
	}

	delegRedelUnbondKey := delegatorRedelegatedUnbondsKey(source, validator)
	delegRedelUnbond, _, err := store.GetBlob[RedelegatedBondsMap](tx, delegRedelUnbondKey)
	if err != nil {
		return 0, err
	}
	if delegRedelUnbond == nil {
		delegRedelUnbond = RedelegatedBondsMap{}
	}

	slashes, _, err := store.GetBlob[[]postypes.Slash](tx, validatorSlashesKey(validator))
	if err != nil {
		return 0, err
	}

	var ripe []UnbondEntry
	var remaining []UnbondEntry
	for _, ent := range unbonds.Entries {
		if ent.Withdraw <= current {
			ripe = append(ripe, ent)
		} else {
			remaining = append(remaining, ent)
		}
	}
	if len(ripe) == 0 {
		return 0, nil
	}

	var total postypes.Amount
	for _, ent := range ripe {
		total += e.computeAmountAfterSlashingWithdraw(slashes, delegRedelUnbond, ent, validator, tx)
		delete(delegRedelUnbond, ent.Start)
	}

	unbonds.Entries = remaining
	if err := store.SetBlob(tx, unbondsKey, unbonds); err != nil {
		return 0, err
	}
	if err := store.SetBlob(tx, delegRedelUnbondKey, delegRedelUnbond); err != nil {
		return 0, err
	}
	return total, nil
}

// computeAmountAfterSlashingWithdraw implements spec §4.6.4's
// compute_amount_after_slashing_withdraw: applies every slash of this
// validator in [start, withdraw-U-W] to the non-redelegated portion,
// and the redelegation-window fold to the redelegated portion.
func (e *Engine) computeAmountAfterSlashingWithdraw(slashes []postypes.Slash, delegRedelUnbond RedelegatedBondsMap, ent UnbondEntry, validator postypes.Address, tx *store.Tx) postypes.Amount {
	cutoff := ent.Withdraw.Sub(e.params.UnbondingLen + e.params.CubicSlashingWindowLength)
	var relevant []postypes.Slash
	for _, s := range slashes {
		if s.Epoch >= ent.Start && s.Epoch <= cutoff {
			relevant = append(relevant, s)
		}
	}

	redelegated := delegRedelUnbond[ent.Start]
	var redelegatedTotal postypes.Amount
	for _, byStart := range redelegated {
		for _, a := range byStart {
			redelegatedTotal += a
		}
	}
	nonRedelegated := ent.Amount.Sub(redelegatedTotal)

	total := applyListSlashes(relevant, nonRedelegated, e.params.SlashProcessingOffset())
	if len(redelegated) > 0 {
		total += e.foldAndSlashRedelegatedBonds(relevant, redelegated, ent.Start, func(src postypes.Address) []postypes.Slash {
			srcSlashes, _, _ := store.GetBlob[[]postypes.Slash](tx, validatorSlashesKey(src))
			return srcSlashes
		})
	}
	return total
}
