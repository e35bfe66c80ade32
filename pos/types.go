// Package pos is the staking and slashing engine itself: the
// validator registry, the three-way validator-set partition, the
// bond/unbond ledger, the redelegation subsystem, the slashing
// pipeline and epoch transition (spec §4). It is one package, the way
// the Rust original is one crate (`proof_of_stake`) — the pieces share
// a single mutable resource (the store, spec §5) and are too tightly
// coupled to layer into separate Go packages without threading a
// transaction handle through artificial package boundaries.
package pos

import (
	"github.com/rashidovich/namada/postypes"
)

// BondMap is the per-(delegator,validator) timeline of spec §3's
// Bond: creation epoch -> amount, every entry positive.
type BondMap map[postypes.Epoch]postypes.Amount

// unbondKey is the (bond_start_epoch, withdraw_epoch) pair indexing
// an Unbond entry.
type unbondKey struct {
	Start    postypes.Epoch `json:"start"`
	Withdraw postypes.Epoch `json:"withdraw"`
}

// UnbondMap is the per-(delegator,validator) timeline of spec §3's
// Unbond: (start,withdraw) -> amount.
type UnbondMap struct {
	Entries []UnbondEntry `json:"entries"`
}

// UnbondEntry is one row of an UnbondMap, kept as a slice rather than
// a map so the JSON blob round-trips struct keys cleanly.
type UnbondEntry struct {
	Start    postypes.Epoch  `json:"start"`
	Withdraw postypes.Epoch  `json:"withdraw"`
	Amount   postypes.Amount `json:"amount"`
}

func (u *UnbondMap) get(start, withdraw postypes.Epoch) (postypes.Amount, bool) {
	for i := range u.Entries {
		if u.Entries[i].Start == start && u.Entries[i].Withdraw == withdraw {
			return u.Entries[i].Amount, true
		}
	}
	return 0, false
}

func (u *UnbondMap) add(start, withdraw postypes.Epoch, amount postypes.Amount) {
	for i := range u.Entries {
		if u.Entries[i].Start == start && u.Entries[i].Withdraw == withdraw {
			u.Entries[i].Amount += amount
			return
		}
	}
	u.Entries = append(u.Entries, UnbondEntry{Start: start, Withdraw: withdraw, Amount: amount})
}

func (u *UnbondMap) remove(start, withdraw postypes.Epoch) {
	out := u.Entries[:0]
	for _, e := range u.Entries {
		if e.Start == start && e.Withdraw == withdraw {
			continue
		}
		out = append(out, e)
	}
	u.Entries = out
}

// RedelegatedAmounts indexes a single (end_epoch) slice of the
// 4-dimensional redelegated-bonds / redelegated-unbonds map of spec
// §3: src_validator -> src_bond_start_epoch -> amount.
type RedelegatedAmounts map[postypes.Address]map[postypes.Epoch]postypes.Amount

// RedelegatedBondsMap is the per-(delegator,dest) (or per-dest-total)
// map keyed by end_epoch -> RedelegatedAmounts.
type RedelegatedBondsMap map[postypes.Epoch]RedelegatedAmounts

func (m RedelegatedBondsMap) add(end postypes.Epoch, src postypes.Address, start postypes.Epoch, amount postypes.Amount) {
	byEnd, ok := m[end]
	if !ok {
		byEnd = make(RedelegatedAmounts)
		m[end] = byEnd
	}
	byStart, ok := byEnd[src]
	if !ok {
		byStart = make(map[postypes.Epoch]postypes.Amount)
		byEnd[src] = byStart
	}
	byStart[start] += amount
}

func (m RedelegatedBondsMap) total() postypes.Amount {
	var sum postypes.Amount
	for _, byEnd := range m {
		for _, byStart := range byEnd {
			for _, a := range byStart {
				sum += a
			}
		}
	}
	return sum
}

// outgoingRedelegation records one (src_bond_start, redelegation_epoch)
// -> amount tranche under validator_outgoing_redelegations[src][dest].
type outgoingRedelegation struct {
	SrcBondStart      postypes.Epoch  `json:"src_bond_start"`
	RedelegationEpoch postypes.Epoch  `json:"redelegation_epoch"`
	Amount            postypes.Amount `json:"amount"`
}

// OutgoingRedelegationsMap is the per-destination entry of
// validator_outgoing_redelegations[src], keyed by source validator
// (under src's key the only inner key is src itself).
type OutgoingRedelegationsMap map[postypes.Address][]outgoingRedelegation
