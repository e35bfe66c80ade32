package pos

import (
	"github.com/rashidovich/namada/poserrors"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Redelegate implements spec §4.5: move amount of stake from src to
// dest without the usual unbond wait, replicating the bond/unbond
// ledger's redelegated-bonds dimension for later retroactive slashing.
func (e *Engine) Redelegate(tx *store.Tx, delegator, src, dest postypes.Address, amount postypes.Amount, current postypes.Epoch) (postypes.ResultSlashing, error) {
	result := postypes.NewResultSlashing()
	if src == dest {
		return result, poserrors.New(poserrors.KindRedelegationSrcEqDest, "redelegation source and destination must differ")
	}
	if isValidator, err := e.IsRegistered(tx, delegator, current); err == nil && isValidator {
		return result, poserrors.New(poserrors.KindDelegatorIsValidator, "redelegation delegator must not be a validator")
	} else if err != nil {
		return result, err
	}
	if err := e.requireRegistered(tx, src, current); err != nil {
		return result, err
	}
	if err := e.requireRegistered(tx, dest, current); err != nil {
		return result, err
	}

	if chained, err := e.isChainedRedelegation(tx, delegator, src, current); err != nil {
		return result, err
	} else if chained {
		return result, poserrors.New(poserrors.KindIsChainedRedelegation, "source tokens are still inside a prior redelegation's slashing window")
	}

	slashResult, err := e.Unbond(tx, delegator, src, amount, current, true)
	if err != nil {
		return result, err
	}

	pipeline := current.Add(e.params.PipelineLen)

	delegRedelDestKey := delegatorRedelegatedBondsKey(delegator, dest)
	delegRedelDest, _, err := store.GetBlob[RedelegatedBondsMap](tx, delegRedelDestKey)
	if err != nil {
		return result, err
	}
	if delegRedelDest == nil {
		delegRedelDest = RedelegatedBondsMap{}
	}

	validatorTotalKey := validatorTotalRedelegatedBondedKey(dest)
	validatorTotal, _, err := store.GetBlob[RedelegatedBondsMap](tx, validatorTotalKey)
	if err != nil {
		return result, err
	}
	if validatorTotal == nil {
		validatorTotal = RedelegatedBondsMap{}
	}

	outgoingKey := validatorOutgoingRedelegationsKey(src)
	outgoing, _, err := store.GetBlob[map[postypes.Address]OutgoingRedelegationsMap](tx, outgoingKey)
	if err != nil {
		return result, err
	}
	if outgoing == nil {
		outgoing = map[postypes.Address]OutgoingRedelegationsMap{}
	}
	if outgoing[dest] == nil {
		outgoing[dest] = OutgoingRedelegationsMap{}
	}

	for srcBondEpoch, slashedAmount := range slashResult.EpochMap {
		if slashedAmount == 0 {
			continue
		}
		delegRedelDest.add(pipeline, src, srcBondEpoch, slashedAmount)
		validatorTotal.add(pipeline, src, srcBondEpoch, slashedAmount)
		outgoing[dest][src] = append(outgoing[dest][src], outgoingRedelegation{
			SrcBondStart:      srcBondEpoch,
			RedelegationEpoch: current,
			Amount:            slashedAmount,
		})
	}

	if err := store.SetBlob(tx, delegRedelDestKey, delegRedelDest); err != nil {
		return result, err
	}
	if err := store.SetBlob(tx, validatorTotalKey, validatorTotal); err != nil {
		return result, err
	}
	if err := store.SetBlob(tx, outgoingKey, outgoing); err != nil {
		return result, err
	}

	if err := e.addBond(tx, delegator, dest, pipeline, slashResult.Sum); err != nil {
		return result, err
	}
	if err := e.addTotalBonded(tx, dest, pipeline, slashResult.Sum); err != nil {
		return result, err
	}

	incomingKey := validatorIncomingRedelegationsKey(dest)
	incoming, _, err := store.GetBlob[map[postypes.Address]postypes.Epoch](tx, incomingKey)
	if err != nil {
		return result, err
	}
	if incoming == nil {
		incoming = map[postypes.Address]postypes.Epoch{}
	}
	incoming[delegator] = pipeline
	if err := store.SetBlob(tx, incomingKey, incoming); err != nil {
		return result, err
	}

	destState, err := e.State(tx, dest, pipeline)
	if err != nil {
		return result, err
	}
	if destState != postypes.ValidatorStateJailed {
		if err := e.applyValidatorSetChange(tx, dest, postypes.Delta(slashResult.Sum), pipeline); err != nil {
			return result, err
		}
	}
	if err := e.validatorDeltasField(dest).AddAtOffset(tx, postypes.Delta(slashResult.Sum), current, e.params.PipelineLen); err != nil {
		return result, err
	}
	if err := e.totalDeltasField().AddAtOffset(tx, postypes.Delta(slashResult.Sum), current, e.params.PipelineLen); err != nil {
		return result, err
	}

	return slashResult, nil
}

// isChainedRedelegation implements spec §4.5's chain-prevention rule:
// reject a new redelegation out of src if delegator's tokens there
// themselves arrived via an incoming redelegation still inside its
// slashing window.
func (e *Engine) isChainedRedelegation(tx *store.Tx, delegator, src postypes.Address, current postypes.Epoch) (bool, error) {
	incomingKey := validatorIncomingRedelegationsKey(src)
	incoming, ok, err := store.GetBlob[map[postypes.Address]postypes.Epoch](tx, incomingKey)
	if err != nil || !ok {
		return false, err
	}
	endEpoch, ok := incoming[delegator]
	if !ok {
		return false, nil
	}
	return endEpoch.Prev().Add(e.params.SlashProcessingOffset()) > current, nil
}
