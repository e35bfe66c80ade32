package pos

import (
	"github.com/rashidovich/namada/metrics"
	"github.com/rashidovich/namada/poslog"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Engine is the PoS core (spec §1-§4): the validator registry, the
// three validator-set partitions, the bond/unbond ledger, the
// redelegation subsystem and the slashing pipeline, all addressed
// through the single shared store (spec §5 — the engine owns it
// exclusively during a state transition, no locking required because
// every call is single-threaded with respect to storage state).
type Engine struct {
	db      *store.DB
	fields  *store.Cache
	params  postypes.PosParams
	log     poslog.Logger
	metrics *metrics.Set
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger overrides the default no-op logger.
func WithLogger(l poslog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics overrides the default no-op metrics Set.
func WithMetrics(m *metrics.Set) Option {
	return func(e *Engine) { e.metrics = m }
}

// New builds an Engine over db with the given parameters.
func New(db *store.DB, params postypes.PosParams, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		fields:  store.NewCache(),
		params:  params,
		log:     poslog.Nop(),
		metrics: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine's (read-only) parameters.
func (e *Engine) Params() postypes.PosParams { return e.params }

// --- epoched per-validator field accessors -------------------------------

func (e *Engine) stateField(v postypes.Address) *store.Epoched[postypes.ValidatorState] {
	prefix := store.NewKey("validator_state").Addr(v).Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.Codec[postypes.ValidatorState]{
		Marshal: func(s postypes.ValidatorState) ([]byte, error) { return []byte{byte(s)}, nil },
		Unmarshal: func(b []byte) (postypes.ValidatorState, error) {
			if len(b) == 0 {
				return postypes.ValidatorStateUnknown, nil
			}
			return postypes.ValidatorState(b[0]), nil
		},
	})
}

func (e *Engine) consensusKeyField(v postypes.Address) *store.Epoched[postypes.ConsensusKey] {
	prefix := store.NewKey("validator_consensus_key").Addr(v).Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[postypes.ConsensusKey]())
}

func (e *Engine) ethHotKeyField(v postypes.Address) *store.Epoched[postypes.EthKey] {
	prefix := store.NewKey("validator_eth_hot_key").Addr(v).Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[postypes.EthKey]())
}

func (e *Engine) ethColdKeyField(v postypes.Address) *store.Epoched[postypes.EthKey] {
	prefix := store.NewKey("validator_eth_cold_key").Addr(v).Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[postypes.EthKey]())
}

func (e *Engine) commissionRateField(v postypes.Address) *store.Epoched[postypes.Dec] {
	prefix := store.NewKey("validator_commission_rate").Addr(v).Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[postypes.Dec]())
}

func (e *Engine) positionField(v postypes.Address) *store.Epoched[positionValue] {
	prefix := store.NewKey("validator_position").Addr(v).Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[positionValue]())
}

// positionValue wraps a validator's allocated position within its
// current set bucket; Present distinguishes "no position" (BelowThreshold)
// from position 0.
type positionValue struct {
	Position uint64 `json:"position"`
	Present  bool   `json:"present"`
}

func (e *Engine) validatorDeltasField(v postypes.Address) *store.EpochedDelta {
	prefix := store.NewKey("validator_deltas").Addr(v).Bytes()
	return store.GetOrCreateEpochedDelta(e.fields, prefix)
}

func (e *Engine) totalDeltasField() *store.EpochedDelta {
	prefix := store.NewKey("total_deltas").Bytes()
	return store.GetOrCreateEpochedDelta(e.fields, prefix)
}

func (e *Engine) totalConsensusStakeField() *store.Epoched[postypes.Amount] {
	prefix := store.NewKey("total_consensus_stake").Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[postypes.Amount]())
}

func (e *Engine) validatorSetField() *store.Epoched[ValidatorSetSnapshot] {
	prefix := store.NewKey("validator_sets").Bytes()
	return store.GetOrCreateEpoched(e.fields, prefix, store.JSONCodec[ValidatorSetSnapshot]())
}

// retentionMin is the oldest epoch whose EpochedDelta entries are
// still guaranteed correct to sum from (spec §4.1 "Horizon"): reads at
// any epoch within [current-U-W, current+P] must be correct.
func (e *Engine) retentionMin(current postypes.Epoch) postypes.Epoch {
	return current.Sub(e.params.UnbondingLen + e.params.CubicSlashingWindowLength)
}
