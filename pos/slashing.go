package pos

import (
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// enqueuedSlash is one pending Slash awaiting cubic-rate processing,
// keyed under enqueuedSlashesKey(processing_epoch) and validator.
type enqueuedSlash struct {
	Validator postypes.Address `json:"validator"`
	Slash     postypes.Slash   `json:"slash"`
}

// Slash implements spec §4.6.2: record a misbehavior report, enqueue
// it for rate computation at processing_epoch, and immediately jail
// the validator through the pipeline.
func (e *Engine) Slash(tx *store.Tx, current postypes.Epoch, evidenceEpoch postypes.Epoch, height uint64, kind postypes.SlashKind, validator postypes.Address, validatorSetUpdateEpoch postypes.Epoch) error {
	processingEpoch := evidenceEpoch.Add(e.params.SlashProcessingOffset())

	newSlash := postypes.Slash{
		Epoch:           evidenceEpoch,
		BlockHeight:     height,
		Kind:            kind,
		Rate:            postypes.ZeroDec(),
		ProcessingEpoch: processingEpoch,
	}

	queueKey := enqueuedSlashesKey(processingEpoch)
	queue, _, err := store.GetBlob[[]enqueuedSlash](tx, queueKey)
	if err != nil {
		return err
	}
	queue = append(queue, enqueuedSlash{Validator: validator, Slash: newSlash})
	if err := store.SetBlob(tx, queueKey, queue); err != nil {
		return err
	}

	lastKey := lastSlashEpochKey(validator)
	prev, ok, err := store.GetBlob[postypes.Epoch](tx, lastKey)
	if err != nil {
		return err
	}
	if !ok || evidenceEpoch > prev {
		if err := store.SetBlob(tx, lastKey, evidenceEpoch); err != nil {
			return err
		}
	}

	return e.jailValidatorThroughPipeline(tx, validator, validatorSetUpdateEpoch, current)
}

// jailValidatorThroughPipeline removes validator from its current set
// bucket and position for every epoch in [validatorSetUpdateEpoch,
// current+P], promoting the largest BelowCapacity validator whenever
// the removal vacates a Consensus slot (spec §4.6.2).
func (e *Engine) jailValidatorThroughPipeline(tx *store.Tx, validator postypes.Address, from, current postypes.Epoch) error {
	pipeline := current.Add(e.params.PipelineLen)
	for epoch := from; epoch <= pipeline; epoch = epoch.Add(1) {
		snap, ok, err := e.validatorSetField().GetExact(tx, epoch)
		if err != nil {
			return err
		}
		if !ok {
			snap = ValidatorSetSnapshot{}
		}

		wasInConsensus := false
		for _, m := range snap.Consensus {
			if m.Address == validator {
				wasInConsensus = true
				break
			}
		}
		snap.removeFromSets(validator)

		var promoted *SetMember
		if wasInConsensus && len(snap.BelowCapacity) > 0 {
			idx := belowCapacityMaxIndex(snap.BelowCapacity)
			m := snap.BelowCapacity[idx]
			snap.BelowCapacity = append(snap.BelowCapacity[:idx:idx], snap.BelowCapacity[idx+1:]...)
			snap.Consensus = append(snap.Consensus, m)
			promoted = &m
		}

		if err := e.validatorSetField().Set(tx, epoch, snap); err != nil {
			return err
		}
		if err := e.stateField(validator).Set(tx, epoch, postypes.ValidatorStateJailed); err != nil {
			return err
		}
		if err := e.positionField(validator).Set(tx, epoch, positionValue{}); err != nil {
			return err
		}
		if promoted != nil {
			if err := e.stateField(promoted.Address).Set(tx, epoch, postypes.ValidatorStateConsensus); err != nil {
				return err
			}
			if err := e.writePosition(tx, promoted.Address, epoch, postypes.ValidatorStateConsensus, promoted.Position); err != nil {
				return err
			}
		}

		if epoch == pipeline {
			break // avoid uint64 wraparound if pipeline is the max representable epoch
		}
	}
	return nil
}
