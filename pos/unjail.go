package pos

import (
	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Unjail implements spec §4.6.5: re-admit a jailed validator into the
// ordered sets at its current pipeline stake, as if newly arriving.
func (e *Engine) Unjail(tx *store.Tx, validator postypes.Address, current postypes.Epoch) error {
	for off := uint64(0); off <= e.params.PipelineLen; off++ {
		s, err := e.State(tx, validator, current.Add(off))
		if err != nil {
			return err
		}
		if s != postypes.ValidatorStateJailed {
			return poserrors.New(poserrors.KindNotJailed, "validator is not jailed through the pipeline")
		}
	}

	last, ok, err := e.LastSlashEpoch(tx, validator)
	if err != nil {
		return err
	}
	if ok && current < last.Add(e.params.SlashProcessingOffset()) {
		return poserrors.New(poserrors.KindNotEligibleForUnjail, "validator is still inside its slash-processing window")
	}

	pipeline := current.Add(e.params.PipelineLen)
	stake, err := e.validatorStakeAt(tx, validator, pipeline)
	if err != nil {
		return err
	}

	snap, ok2, err := e.validatorSetField().GetExact(tx, pipeline)
	if err != nil {
		return err
	}
	if !ok2 {
		snap = ValidatorSetSnapshot{}
	}
	snap.addValidator(validator)

	newState, newPos, demoted := insertValidatorIntoValidatorSet(&snap, validator, stake, e.params)

	if err := e.validatorSetField().Set(tx, pipeline, snap); err != nil {
		return err
	}
	if err := e.stateField(validator).Set(tx, pipeline, newState); err != nil {
		return err
	}
	if err := e.writePosition(tx, validator, pipeline, newState, newPos); err != nil {
		return err
	}
	if demoted != nil {
		if err := e.stateField(demoted.Address).Set(tx, pipeline, postypes.ValidatorStateBelowCapacity); err != nil {
			return err
		}
		if err := e.writePosition(tx, demoted.Address, pipeline, postypes.ValidatorStateBelowCapacity, demoted.Position); err != nil {
			return err
		}
	}
	return nil
}
