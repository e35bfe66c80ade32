// Command posd is the local demo harness over the PoS engine: it
// loads a genesis file, opens the Badger store, and ticks epoch
// transitions on a timer, narrating validator-set-update diffs — the
// engine's counterpart to the teacher's node daemon, with the p2p/BFT
// machinery replaced by the consensus.Bridge boundary adapter (spec
// §6 is an external collaborator, not this module's concern).
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rashidovich/namada/consensus"
	"github.com/rashidovich/namada/pos"
	"github.com/rashidovich/namada/poslog"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
)

// Config is posd's command-line configuration.
type Config struct {
	DataDir      string
	GenesisFile  string
	EpochSeconds int
}

// GenesisFileValidator is one entry of the genesis.json validator list.
type GenesisFileValidator struct {
	Address        string `json:"address"`
	ConsensusKey   string `json:"consensus_key"`
	Stake          uint64 `json:"stake"`
	CommissionRate string `json:"commission_rate"`
}

// GenesisFile is the on-disk genesis document posd ingests at first
// start; subsequent restarts skip ingestion because the store already
// carries epoch 0's state.
type GenesisFile struct {
	Validators []GenesisFileValidator `json:"validators"`
}

func main() {
	cfg := parseFlags()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	db, err := store.Open(cfg.DataDir + "/pos.db")
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	logger, err := poslog.New()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	params := postypes.DefaultParams()
	engine := pos.New(db, params, pos.WithLogger(logger))
	bridge := consensus.NewBridge(engine, db)

	if err := maybeIngestGenesis(db, engine, cfg.GenesisFile); err != nil {
		log.Fatalf("failed to ingest genesis: %v", err)
	}

	updates, err := consensus.GenesisValidatorSet(bridge, postypes.Epoch(0), identityMapper)
	if err != nil {
		log.Fatalf("failed to read genesis validator set: %v", err)
	}
	log.Printf("genesis validator set: %d members", len(updates))
	for _, u := range updates {
		log.Printf("  %x power=%d", u.ConsensusKey, u.Power)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.EpochSeconds) * time.Second)
	defer ticker.Stop()

	current := postypes.Epoch(0)
	log.Printf("posd running, epoch length %ds", cfg.EpochSeconds)

	for {
		select {
		case <-sigChan:
			log.Println("shutting down")
			return
		case <-ticker.C:
			current = current.Add(1)
			if err := tickEpoch(db, engine, bridge, current); err != nil {
				log.Printf("epoch %d transition failed: %v", current, err)
			}
		}
	}
}

func tickEpoch(db *store.DB, engine *pos.Engine, bridge *consensus.Bridge, epoch postypes.Epoch) error {
	var drained pos.RewardsAccumulator
	err := db.Update(func(tx *store.Tx) error {
		var innerErr error
		drained, innerErr = engine.OnEpochTransition(tx, epoch)
		return innerErr
	})
	if err != nil {
		return fmt.Errorf("epoch transition: %w", err)
	}
	log.Printf("epoch %d: drained %d reward accumulator entries", epoch, len(drained))

	updates, err := consensus.ValidatorSetUpdate(bridge, epoch.Sub(1), identityMapper)
	if err != nil {
		return fmt.Errorf("validator set update: %w", err)
	}
	if len(updates) == 0 {
		log.Printf("epoch %d: no validator set changes", epoch)
		return nil
	}
	log.Printf("epoch %d: %d validator set updates", epoch, len(updates))
	for _, u := range updates {
		if u.Deactivated {
			log.Printf("  %x removed", u.ConsensusKey)
			continue
		}
		log.Printf("  %x power=%d", u.ConsensusKey, u.Power)
	}
	return nil
}

func identityMapper(u pos.ValidatorSetUpdate) pos.ValidatorSetUpdate { return u }

func maybeIngestGenesis(db *store.DB, engine *pos.Engine, path string) error {
	var alreadyGenesis bool
	err := db.View(func(tx *store.Tx) error {
		all, err := engine.AllValidators(tx, postypes.Epoch(0))
		if err != nil {
			return err
		}
		alreadyGenesis = len(all) > 0
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyGenesis {
		log.Println("genesis already ingested, skipping")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read genesis file: %w", err)
	}
	var gf GenesisFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return fmt.Errorf("parse genesis file: %w", err)
	}

	validators := make([]pos.GenesisValidator, 0, len(gf.Validators))
	for _, v := range gf.Validators {
		addr, err := postypes.AddressFromString(v.Address)
		if err != nil {
			return fmt.Errorf("genesis validator %q: %w", v.Address, err)
		}
		key, err := decodeHexConsensusKey(v.ConsensusKey)
		if err != nil {
			return fmt.Errorf("genesis validator %q: %w", v.Address, err)
		}
		rate, err := parseGenesisDec(v.CommissionRate)
		if err != nil {
			return fmt.Errorf("genesis validator %q: %w", v.Address, err)
		}
		validators = append(validators, pos.GenesisValidator{
			BecomeValidatorParams: pos.BecomeValidatorParams{
				Address:             addr,
				ConsensusKey:        key,
				CommissionRate:      rate,
				MaxCommissionChange: postypes.NewDec(1, 2),
			},
			Stake: postypes.Amount(v.Stake),
		})
	}

	return db.Update(func(tx *store.Tx) error {
		return engine.InitGenesis(tx, validators, engine.Params())
	})
}

func parseFlags() *Config {
	dataDir := flag.String("datadir", "./posd-data", "data directory")
	genesisFile := flag.String("genesis", "genesis.json", "genesis file path")
	epochSeconds := flag.Int("epoch-seconds", 10, "seconds per simulated epoch")
	flag.Parse()

	return &Config{
		DataDir:      *dataDir,
		GenesisFile:  *genesisFile,
		EpochSeconds: *epochSeconds,
	}
}

func decodeHexConsensusKey(s string) (postypes.ConsensusKey, error) {
	var key postypes.ConsensusKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("decode consensus key: %w", err)
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("consensus key must be %d bytes, got %d", len(key), len(b))
	}
	copy(key[:], b)
	return key, nil
}

func parseGenesisDec(s string) (postypes.Dec, error) {
	if s == "" {
		return postypes.NewDec(1, 1), nil
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	digits := whole + frac
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return postypes.ZeroDec(), fmt.Errorf("parse decimal %q: %w", s, err)
	}
	var exp uint64
	if hasFrac {
		exp = uint64(len(frac))
	}
	return postypes.NewDec(n, exp), nil
}
