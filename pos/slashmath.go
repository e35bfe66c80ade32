package pos

import (
	"sort"

	"github.com/rashidovich/namada/postypes"
)

// applyListSlashes implements spec §4.6.1's apply_list_slashes: a
// non-compounding combination of every slash filed against a bond
// tranche. Two simultaneous slashes of rate r1, r2 remove at most
// r1+r2 of the original amount, never 1-(1-r1)(1-r2) and never more
// than the whole amount.
func applyListSlashes(slashes []postypes.Slash, amount postypes.Amount, processingOffset uint64) postypes.Amount {
	if len(slashes) == 0 {
		return amount
	}
	sorted := append([]postypes.Slash(nil), slashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Epoch < sorted[j].Epoch })

	computed := make(map[postypes.Epoch]postypes.Amount, len(sorted))
	remaining := amount
	for _, s := range sorted {
		slashedFull := s.Rate.MulCeil(amount)
		computed[s.Epoch] = slashedFull

		var priorSum postypes.Amount
		for e, c := range computed {
			if e == s.Epoch {
				continue
			}
			if e.Add(processingOffset) <= s.Epoch {
				priorSum += c
			}
		}
		deductible := amount.Sub(priorSum)
		if deductible > slashedFull {
			deductible = slashedFull
		}
		remaining = remaining.Sub(deductible)
	}
	return remaining
}

// redelegationWindowSlashes filters validator's persisted slash list
// to those falling in the redelegation slashing window, honoring the
// "at or after the redelegated bond's original start epoch" bound
// from spec §4.6.1.
func redelegationWindowSlashes(slashes []postypes.Slash, params postypes.PosParams, redelegationStart, redelegationEnd, srcBondStart postypes.Epoch) []postypes.Slash {
	var out []postypes.Slash
	for _, s := range slashes {
		if s.Epoch < srcBondStart {
			continue
		}
		if params.InRedelegationSlashingWindow(s.Epoch, redelegationStart, redelegationEnd) {
			out = append(out, s)
		}
	}
	return out
}

// foldAndSlashRedelegatedBonds implements spec §4.6.1's
// fold_and_slash_redelegated_bonds: the redelegated component of a
// bond tranche is slashed by merging the destination's own slash list
// with each source validator's slashes that still fall inside that
// redelegation's slashing window.
func (e *Engine) foldAndSlashRedelegatedBonds(
	destSlashes []postypes.Slash,
	redelegated RedelegatedAmounts,
	bondEpoch postypes.Epoch,
	srcSlashesOf func(src postypes.Address) []postypes.Slash,
) postypes.Amount {
	redelegationStart := e.params.RedelegationStartEpochFromEnd(bondEpoch)
	var total postypes.Amount
	for src, byStart := range redelegated {
		for start, amount := range byStart {
			windowed := redelegationWindowSlashes(srcSlashesOf(src), e.params, redelegationStart, bondEpoch, start)
			all := append(append([]postypes.Slash(nil), destSlashes...), windowed...)
			total += applyListSlashes(all, amount, e.params.SlashProcessingOffset())
		}
	}
	return total
}
