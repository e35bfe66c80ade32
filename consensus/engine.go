// Package consensus is the PoS engine's boundary adapter to the
// external consensus/block-production layer (spec §6): it never
// tallies votes or proposes blocks itself (that engine is an external
// collaborator per spec §1), it only translates between the PoS
// core's abstract ValidatorSetUpdate and misbehavior-report shapes and
// whatever concrete wire types the surrounding node uses.
package consensus

import (
	"sync"

	"github.com/rashidovich/namada/pos"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Mapper is an injection from the engine's abstract ValidatorSetUpdate
// into a consensus layer's concrete update type T (spec §6).
type Mapper[T any] func(pos.ValidatorSetUpdate) T

// Bridge holds the one mutable resource the boundary needs: which
// epoch's validator-set-update diff has last been emitted, reported by
// LastEmittedEpoch. It is held in memory only and is not consulted
// before emitting, so a repeated call for the same epoch emits again.
type Bridge struct {
	mu          sync.RWMutex
	engine      *pos.Engine
	db          *store.DB
	lastEmitted postypes.Epoch
	everEmitted bool
}

// NewBridge wires a Bridge over an already-constructed PoS engine and
// its store.
func NewBridge(engine *pos.Engine, db *store.DB) *Bridge {
	return &Bridge{engine: engine, db: db}
}

// GenesisValidatorSet implements spec §6's genesis_validator_set:
// emit a Consensus update for every genesis validator at `current`.
func GenesisValidatorSet[T any](b *Bridge, current postypes.Epoch, mapper Mapper[T]) ([]T, error) {
	var out []T
	err := b.db.View(func(tx *store.Tx) error {
		members, err := b.engine.ConsensusSetMembers(tx, current)
		if err != nil {
			return err
		}
		for _, m := range members {
			key, ok, err := b.engine.ConsensusKeyAt(tx, m.Address, current)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			out = append(out, mapper(pos.ValidatorSetUpdate{
				ConsensusKey: key,
				Power:        b.engine.VotingPowerFor(m.Stake),
			}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.lastEmitted = current
	b.everEmitted = true
	b.mu.Unlock()
	return out, nil
}

// ValidatorSetUpdate implements spec §6's validator_set_update: at
// block N-2 of the epoch before the boundary at block N, emit the
// diff of Consensus(e+1) against Consensus(e).
func ValidatorSetUpdate[T any](b *Bridge, epoch postypes.Epoch, mapper Mapper[T]) ([]T, error) {
	var out []T
	err := b.db.Update(func(tx *store.Tx) error {
		updates, err := b.engine.ValidatorSetUpdates(tx, epoch)
		if err != nil {
			return err
		}
		for _, u := range updates {
			out = append(out, mapper(u))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.lastEmitted = epoch.Add(1)
	b.everEmitted = true
	b.mu.Unlock()
	return out, nil
}

// LastEmittedEpoch reports the epoch whose diff (or genesis set) was
// most recently emitted, and whether anything has been emitted yet.
func (b *Bridge) LastEmittedEpoch() (postypes.Epoch, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastEmitted, b.everEmitted
}

// MisbehaviorReport is the consensus layer's evidence shape for
// spec §6's `slash` entry point.
type MisbehaviorReport struct {
	EvidenceEpoch           postypes.Epoch
	Height                  uint64
	Kind                    postypes.SlashKind
	Validator               postypes.Address
	ValidatorSetUpdateEpoch postypes.Epoch
}

// ReportMisbehavior is spec §6's `slash(evidence_epoch, height, kind,
// validator, set_update_epoch)` entry point: one call per misbehavior
// report, applied inside its own transaction.
func (b *Bridge) ReportMisbehavior(current postypes.Epoch, report MisbehaviorReport) error {
	return b.db.Update(func(tx *store.Tx) error {
		return b.engine.Slash(tx, current, report.EvidenceEpoch, report.Height, report.Kind, report.Validator, report.ValidatorSetUpdateEpoch)
	})
}

// LogBlockRewards is spec §6's `log_block_rewards(epoch, proposer,
// votes)` entry point: one call per finalized block.
func (b *Bridge) LogBlockRewards(epoch postypes.Epoch, proposer postypes.Address, votes []pos.VotingPower) error {
	return b.db.Update(func(tx *store.Tx) error {
		return b.engine.LogBlockRewards(tx, epoch, proposer, votes)
	})
}
