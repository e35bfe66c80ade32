package postypes

// PosParams is process-wide at genesis and per-epoch thereafter (spec
// §3). The PoS core only ever reads it; changing it is a governance
// action outside this module.
type PosParams struct {
	// PipelineLen (P) is the offset at which new bond/unbond/redelegate
	// actions take effect.
	PipelineLen uint64
	// UnbondingLen (U) is the look-back window controlling when a
	// misbehavior can still slash in-flight unbonded stake.
	UnbondingLen uint64
	// CubicSlashingWindowLength (W) look-around window for the cubic
	// slash-rate computation.
	CubicSlashingWindowLength uint64
	// MaxValidatorSlots caps the size of the Consensus set.
	MaxValidatorSlots uint64
	// ValidatorStakeThreshold is the minimum stake for BelowCapacity
	// eligibility; below it a validator sits in BelowThreshold.
	ValidatorStakeThreshold Amount
	// TmVotesPerToken converts a stake amount into Tendermint voting
	// power for validator-set-update emission.
	TmVotesPerToken     Dec
	BlockProposerReward Dec
	BlockVoteReward     Dec
	// MaxCommissionChangePerEpoch is a chain-wide commission-change
	// parameter. The engine does not read it: ChangeCommissionRate
	// bounds each change by the validator's own MaxCommissionChange.
	MaxCommissionChangePerEpoch Dec
	// StoreValidatorSetsLen bounds how many past epochs of validator
	// sets are retained before purge_validator_sets_for_old_epoch.
	StoreValidatorSetsLen uint64
}

// SlashProcessingOffset is U + W + 1, the gap between an infraction's
// evidence epoch and the epoch its slash rate is finalized.
func (p PosParams) SlashProcessingOffset() uint64 {
	return p.UnbondingLen + p.CubicSlashingWindowLength + 1
}

// WithdrawableOffset is P + U + W + 1, the gap between an unbond's
// creation epoch and the epoch its tokens become withdrawable.
func (p PosParams) WithdrawableOffset() uint64 {
	return p.PipelineLen + p.SlashProcessingOffset()
}

// CubicSlashEpochWindow returns the inclusive [start,end] epoch range
// around infractionEpoch considered by the cubic slash-rate formula.
func (p PosParams) CubicSlashEpochWindow(infractionEpoch Epoch) (Epoch, Epoch) {
	return infractionEpoch.Sub(p.CubicSlashingWindowLength), infractionEpoch.Add(p.CubicSlashingWindowLength)
}

// RedelegationStartEpochFromEnd recovers a redelegation's start epoch
// from its end (= current+P at redelegation time) epoch.
func (p PosParams) RedelegationStartEpochFromEnd(endEpoch Epoch) Epoch {
	return endEpoch.Sub(p.PipelineLen)
}

// InRedelegationSlashingWindow reports whether a slash at slashEpoch
// falls in the window [redelegationStart-P+1, redelegationEnd] that
// still lets it retroactively slash a redelegated tranche.
func (p PosParams) InRedelegationSlashingWindow(slashEpoch, redelegationStart, redelegationEnd Epoch) bool {
	windowStart := redelegationStart.Sub(p.PipelineLen - 1)
	if p.PipelineLen == 0 {
		windowStart = redelegationStart
	}
	return slashEpoch >= windowStart && slashEpoch <= redelegationEnd
}

// DefaultParams returns parameter values convenient for tests and the
// demo harness; production values are supplied by the caller via
// genesis ingestion (out of scope here).
func DefaultParams() PosParams {
	return PosParams{
		PipelineLen:                 2,
		UnbondingLen:                6,
		CubicSlashingWindowLength:   1,
		MaxValidatorSlots:           100,
		ValidatorStakeThreshold:     1,
		TmVotesPerToken:             NewDec(1, 0),
		BlockProposerReward:         NewDec(125, 3),
		BlockVoteReward:             NewDec(1, 1),
		MaxCommissionChangePerEpoch: NewDec(1, 2),
		StoreValidatorSetsLen:       3,
	}
}
