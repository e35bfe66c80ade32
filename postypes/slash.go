package postypes

// SlashKind enumerates the misbehavior kinds the consensus layer can
// report (spec §6 `slash(... kind ...)`). Each kind carries a base
// rate that floors the cubic-rate computation.
type SlashKind int

const (
	SlashKindUnknown SlashKind = iota
	SlashKindDuplicateVote
	SlashKindLightClientAttack
)

// BaseRate is the minimum slash rate for this kind, regardless of the
// cubic rate computed from concurrent misbehaving stake.
func (k SlashKind) BaseRate() Dec {
	switch k {
	case SlashKindDuplicateVote:
		return NewDec(1, 3) // 0.001
	case SlashKindLightClientAttack:
		return NewDec(1, 1) // 0.1
	default:
		return ZeroDec()
	}
}

func (k SlashKind) String() string {
	switch k {
	case SlashKindDuplicateVote:
		return "duplicate_vote"
	case SlashKindLightClientAttack:
		return "light_client_attack"
	default:
		return "unknown"
	}
}

// Slash is a single misbehavior record (spec §3). Rate starts at zero
// and is filled in by cubic-rate processing at ProcessingEpoch.
type Slash struct {
	Epoch           Epoch // evidence (infraction) epoch
	BlockHeight     uint64
	Kind            SlashKind
	Rate            Dec
	ProcessingEpoch Epoch
}

// Processed reports whether this slash's rate has been computed. A
// zero rate before processing is a legitimate placeholder (spec §9
// Open Question); callers distinguish the two states via this flag
// rather than Rate == 0, since a 100%-mitigated slash could also settle
// at zero.
func (s Slash) Processed(atEpoch Epoch) bool {
	return atEpoch >= s.ProcessingEpoch
}

// ResultSlashing is the result of consuming one or more bond tranches
// during an unbond: the net amount returned to the delegator after
// applying every historical slash, broken down per consumed bond
// start epoch so callers (redelegation) can re-attribute the
// post-slash remainder per tranche.
type ResultSlashing struct {
	Sum      Amount
	EpochMap map[Epoch]Amount
}

// NewResultSlashing returns a zeroed ResultSlashing ready for
// accumulation.
func NewResultSlashing() ResultSlashing {
	return ResultSlashing{EpochMap: make(map[Epoch]Amount)}
}

// Add folds amount at bondStartEpoch into the result.
func (r *ResultSlashing) Add(bondStartEpoch Epoch, amount Amount) {
	r.Sum += amount
	r.EpochMap[bondStartEpoch] += amount
}
