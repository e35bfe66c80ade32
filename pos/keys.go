package pos

import (
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Every prefix builder below corresponds 1:1 to a storage.rs constant
// in the Rust original (e.g. bondKey <-> BOND_STORAGE_KEY), kept as
// small functions instead of package-level consts so the
// delegator/validator scoping is baked into the prefix up front.

func bondKey(delegator, validator postypes.Address) []byte {
	return store.NewKey("bond").Addr(validator).Addr(delegator).Bytes()
}

func unbondKeyPrefix(delegator, validator postypes.Address) []byte {
	return store.NewKey("unbond").Addr(validator).Addr(delegator).Bytes()
}

func totalBondedKey(validator postypes.Address) []byte {
	return store.NewKey("total_bonded").Addr(validator).Bytes()
}

func totalUnbondedKey(validator postypes.Address) []byte {
	return store.NewKey("total_unbonded").Addr(validator).Bytes()
}

func delegatorRedelegatedBondsKey(delegator, dest postypes.Address) []byte {
	return store.NewKey("delegator_redelegated_bonds").Addr(dest).Addr(delegator).Bytes()
}

func delegatorRedelegatedUnbondsKey(delegator, dest postypes.Address) []byte {
	return store.NewKey("delegator_redelegated_unbonds").Addr(dest).Addr(delegator).Bytes()
}

func validatorTotalRedelegatedBondedKey(dest postypes.Address) []byte {
	return store.NewKey("validator_total_redelegated_bonded").Addr(dest).Bytes()
}

func validatorTotalRedelegatedUnbondedKey(dest postypes.Address) []byte {
	return store.NewKey("validator_total_redelegated_unbonded").Addr(dest).Bytes()
}

func validatorOutgoingRedelegationsKey(src postypes.Address) []byte {
	return store.NewKey("validator_outgoing_redelegations").Addr(src).Bytes()
}

func validatorIncomingRedelegationsKey(dest postypes.Address) []byte {
	return store.NewKey("validator_incoming_redelegations").Addr(dest).Bytes()
}

func enqueuedSlashesKey(processingEpoch postypes.Epoch) []byte {
	return store.NewKey("enqueued_slashes").Epoch(processingEpoch).Bytes()
}

func validatorSlashesKey(validator postypes.Address) []byte {
	return store.NewKey("validator_slashes").Addr(validator).Bytes()
}

func lastSlashEpochKey(validator postypes.Address) []byte {
	return store.NewKey("last_slash_epoch").Addr(validator).Bytes()
}

func consensusKeyIndexKey(key postypes.ConsensusKey) []byte {
	return store.NewKey("consensus_key_index").Raw(key[:]).Bytes()
}

func validatorMetadataKey(validator postypes.Address) []byte {
	return store.NewKey("validator_metadata").Addr(validator).Bytes()
}

func allValidatorsKey() []byte {
	return store.NewKey("all_validators").Bytes()
}

func rewardsAccumulatorKey() []byte {
	return store.NewKey("rewards_accumulator").Bytes()
}
