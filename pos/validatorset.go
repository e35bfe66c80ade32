package pos

import (
	"sort"

	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// SetMember is one (address, stake, position) row of a validator-set
// bucket (spec §3 "Validator Sets"). Position is allocation order,
// used to break stake ties deterministically (spec §4.2).
type SetMember struct {
	Address  postypes.Address `json:"address"`
	Stake    postypes.Amount  `json:"stake"`
	Position uint64           `json:"position"`
}

// ValidatorSetSnapshot is the full epoch-indexed validator-set state:
// the two ordered partitions plus the registry-wide address list that
// copy_validator_sets_and_positions propagates alongside them (spec
// §4.2). BelowThreshold is not stored here — it has no position or
// ordering, it is simply "registered, state == BelowThreshold".
type ValidatorSetSnapshot struct {
	Consensus     []SetMember        `json:"consensus"`
	BelowCapacity []SetMember        `json:"below_capacity"`
	AllValidators []postypes.Address `json:"all_validators"`
	NextPosition  uint64             `json:"next_position"`
}

func (s ValidatorSetSnapshot) clone() ValidatorSetSnapshot {
	out := ValidatorSetSnapshot{
		Consensus:     append([]SetMember(nil), s.Consensus...),
		BelowCapacity: append([]SetMember(nil), s.BelowCapacity...),
		AllValidators: append([]postypes.Address(nil), s.AllValidators...),
		NextPosition:  s.NextPosition,
	}
	return out
}

func (s *ValidatorSetSnapshot) allocPosition() uint64 {
	p := s.NextPosition
	s.NextPosition++
	return p
}

func (s *ValidatorSetSnapshot) hasValidator(v postypes.Address) bool {
	for _, a := range s.AllValidators {
		if a == v {
			return true
		}
	}
	return false
}

func (s *ValidatorSetSnapshot) addValidator(v postypes.Address) {
	if !s.hasValidator(v) {
		s.AllValidators = append(s.AllValidators, v)
	}
}

func removeMember(bucket []SetMember, v postypes.Address) ([]SetMember, SetMember, bool) {
	for i := range bucket {
		if bucket[i].Address == v {
			m := bucket[i]
			out := append(bucket[:i:i], bucket[i+1:]...)
			return out, m, true
		}
	}
	return bucket, SetMember{}, false
}

// removeFromSets removes v from whichever of the two ordered buckets
// it is currently in, returning its prior membership if found.
func (s *ValidatorSetSnapshot) removeFromSets(v postypes.Address) (SetMember, bool) {
	if rest, m, ok := removeMember(s.Consensus, v); ok {
		s.Consensus = rest
		return m, true
	}
	if rest, m, ok := removeMember(s.BelowCapacity, v); ok {
		s.BelowCapacity = rest
		return m, true
	}
	return SetMember{}, false
}

// consensusMinIndex finds the lowest-stake member of Consensus,
// breaking ties by picking the *last*-allocated position (spec §4.2:
// "demote the last-position validator in the min bucket").
func consensusMinIndex(bucket []SetMember) int {
	min := -1
	for i, m := range bucket {
		if min == -1 {
			min = i
			continue
		}
		cur := bucket[min]
		if m.Stake < cur.Stake || (m.Stake == cur.Stake && m.Position > cur.Position) {
			min = i
		}
	}
	return min
}

// belowCapacityMaxIndex finds the highest-stake member of
// BelowCapacity, breaking ties by earliest-allocated position (first
// in line for promotion).
func belowCapacityMaxIndex(bucket []SetMember) int {
	max := -1
	for i, m := range bucket {
		if max == -1 {
			max = i
			continue
		}
		cur := bucket[max]
		if m.Stake > cur.Stake || (m.Stake == cur.Stake && m.Position < cur.Position) {
			max = i
		}
	}
	return max
}

func minStake(bucket []SetMember) (postypes.Amount, bool) {
	i := consensusMinIndex(bucket)
	if i == -1 {
		return 0, false
	}
	return bucket[i].Stake, true
}

func maxStake(bucket []SetMember) (postypes.Amount, bool) {
	i := belowCapacityMaxIndex(bucket)
	if i == -1 {
		return 0, false
	}
	return bucket[i].Stake, true
}

// insertValidatorIntoValidatorSet implements spec §4.2's
// insert_validator_into_validator_set at the snapshot level; the
// caller is responsible for writing state/position back to the
// epoched fields at the target epoch.
func insertValidatorIntoValidatorSet(s *ValidatorSetSnapshot, v postypes.Address, stake postypes.Amount, params postypes.PosParams) (postypes.ValidatorState, uint64, *SetMember) {
	if stake < params.ValidatorStakeThreshold {
		return postypes.ValidatorStateBelowThreshold, 0, nil
	}
	if uint64(len(s.Consensus)) < params.MaxValidatorSlots {
		pos := s.allocPosition()
		s.Consensus = append(s.Consensus, SetMember{Address: v, Stake: stake, Position: pos})
		return postypes.ValidatorStateConsensus, pos, nil
	}
	if min, ok := minStake(s.Consensus); ok && stake > min {
		idx := consensusMinIndex(s.Consensus)
		demoted := s.Consensus[idx]
		s.Consensus = append(s.Consensus[:idx:idx], s.Consensus[idx+1:]...)
		s.BelowCapacity = append(s.BelowCapacity, demoted)
		pos := s.allocPosition()
		s.Consensus = append(s.Consensus, SetMember{Address: v, Stake: stake, Position: pos})
		return postypes.ValidatorStateConsensus, pos, &demoted
	}
	pos := s.allocPosition()
	s.BelowCapacity = append(s.BelowCapacity, SetMember{Address: v, Stake: stake, Position: pos})
	return postypes.ValidatorStateBelowCapacity, pos, nil
}

// promoteMaxBelowCapacity moves the highest-stake BelowCapacity member
// into Consensus, for use when a Consensus departure vacates a slot.
func promoteMaxBelowCapacity(s *ValidatorSetSnapshot) *SetMember {
	idx := belowCapacityMaxIndex(s.BelowCapacity)
	if idx == -1 {
		return nil
	}
	m := s.BelowCapacity[idx]
	s.BelowCapacity = append(s.BelowCapacity[:idx:idx], s.BelowCapacity[idx+1:]...)
	s.Consensus = append(s.Consensus, m)
	return &m
}

// demoteMinConsensus moves the lowest-stake Consensus member into
// BelowCapacity, for use when a BelowCapacity arrival outbids it.
func demoteMinConsensus(s *ValidatorSetSnapshot) *SetMember {
	idx := consensusMinIndex(s.Consensus)
	if idx == -1 {
		return nil
	}
	m := s.Consensus[idx]
	s.Consensus = append(s.Consensus[:idx:idx], s.Consensus[idx+1:]...)
	s.BelowCapacity = append(s.BelowCapacity, m)
	return &m
}

// updateValidatorSet implements spec §4.2's update_validator_set: v's
// stake is changing from preStake to preStake+change. Returns v's new
// state and position (0 / not present if BelowThreshold), plus at most
// one other validator affected as a side effect: demoted out of
// Consensus into BelowCapacity (v's stake rose and outbid it), or
// promoted from BelowCapacity into the slot v's departure from
// Consensus vacated (v's stake fell). Mirrors the original's
// update_validator_set, which branches on whether v was previously in
// Consensus or BelowCapacity rather than just on the sign of change.
func updateValidatorSet(s *ValidatorSetSnapshot, v postypes.Address, preStake postypes.Amount, change postypes.Delta, params postypes.PosParams) (postypes.ValidatorState, uint64, *SetMember, *SetMember) {
	postStake := postypes.AmountAddDelta(preStake, change)

	if preStake < params.ValidatorStakeThreshold && postStake < params.ValidatorStakeThreshold {
		return postypes.ValidatorStateBelowThreshold, 0, nil, nil
	}

	wasConsensus := false
	for _, m := range s.Consensus {
		if m.Address == v {
			wasConsensus = true
			break
		}
	}
	wasBelowCapacity := false
	if !wasConsensus {
		for _, m := range s.BelowCapacity {
			if m.Address == v {
				wasBelowCapacity = true
				break
			}
		}
	}
	s.removeFromSets(v)

	switch {
	case wasConsensus:
		maxBC, hasBC := maxStake(s.BelowCapacity)
		switch {
		case postStake < params.ValidatorStakeThreshold:
			promoted := promoteMaxBelowCapacity(s)
			return postypes.ValidatorStateBelowThreshold, 0, nil, promoted
		case hasBC && postStake < maxBC:
			// v no longer holds its own among Consensus; the best
			// BelowCapacity challenger takes the vacated slot and v
			// drops down to take the challenger's old spot.
			promoted := promoteMaxBelowCapacity(s)
			pos := s.allocPosition()
			s.BelowCapacity = append(s.BelowCapacity, SetMember{Address: v, Stake: postStake, Position: pos})
			return postypes.ValidatorStateBelowCapacity, pos, nil, promoted
		default:
			pos := s.allocPosition()
			s.Consensus = append(s.Consensus, SetMember{Address: v, Stake: postStake, Position: pos})
			return postypes.ValidatorStateConsensus, pos, nil, nil
		}

	case wasBelowCapacity:
		minC, hasC := minStake(s.Consensus)
		switch {
		case hasC && postStake > minC:
			demoted := demoteMinConsensus(s)
			pos := s.allocPosition()
			s.Consensus = append(s.Consensus, SetMember{Address: v, Stake: postStake, Position: pos})
			return postypes.ValidatorStateConsensus, pos, demoted, nil
		case postStake >= params.ValidatorStakeThreshold:
			pos := s.allocPosition()
			s.BelowCapacity = append(s.BelowCapacity, SetMember{Address: v, Stake: postStake, Position: pos})
			return postypes.ValidatorStateBelowCapacity, pos, nil, nil
		default:
			return postypes.ValidatorStateBelowThreshold, 0, nil, nil
		}

	default:
		// v held no position (BelowThreshold); treat its arrival like a
		// fresh insertion.
		state, pos, demoted := insertValidatorIntoValidatorSet(s, v, postStake, params)
		return state, pos, demoted, nil
	}
}

// copyValidatorSetsAndPositions duplicates a snapshot into the engine's
// epoched store at epoch `to` (spec §4.2); the snapshot is read at
// exactly `from` via e.validatorSetField().GetExact.
func (e *Engine) copyValidatorSetsAndPositions(tx *store.Tx, from, to postypes.Epoch) error {
	field := e.validatorSetField()
	snap, ok, err := field.GetExact(tx, from)
	if err != nil {
		return err
	}
	if !ok {
		snap = ValidatorSetSnapshot{}
	}
	return field.Set(tx, to, snap.clone())
}

// sortedConsensusDescending returns Consensus sorted by descending
// stake (for display/diffing); the stored order is insertion order.
func sortedConsensusDescending(bucket []SetMember) []SetMember {
	out := append([]SetMember(nil), bucket...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stake != out[j].Stake {
			return out[i].Stake > out[j].Stake
		}
		return out[i].Position < out[j].Position
	})
	return out
}
