// Command posctl is a local control CLI over a posd data directory: it
// opens the same Badger store the daemon uses and runs one engine
// operation per invocation, in the spirit of the teacher's wallet CLI
// (generate/address/send/balance/stake as one-shot file-backed
// subcommands rather than a long-running process).
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/rashidovich/namada/pos"
	"github.com/rashidovich/namada/postypes"
	"github.com/rashidovich/namada/store"
	"github.com/rashidovich/namada/validatorkeys"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "genkey":
		genKey()
	case "register":
		register()
	case "bond":
		bond()
	case "unbond":
		unbond()
	case "withdraw":
		withdraw()
	case "redelegate":
		redelegate()
	case "slash":
		slash()
	case "unjail":
		unjail()
	case "status":
		status()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  posctl genkey                                             - generate a validator keypair")
	fmt.Println("  posctl register   -db DIR -addr HEX -key HEX [-commission DEC]")
	fmt.Println("  posctl bond       -db DIR -from HEX -validator HEX -amount N -epoch N")
	fmt.Println("  posctl unbond     -db DIR -from HEX -validator HEX -amount N -epoch N")
	fmt.Println("  posctl withdraw   -db DIR -from HEX -validator HEX -epoch N")
	fmt.Println("  posctl redelegate -db DIR -from HEX -src HEX -dest HEX -amount N -epoch N")
	fmt.Println("  posctl slash      -db DIR -validator HEX -kind duplicate_vote|light_client_attack -evidence-epoch N -height N -epoch N")
	fmt.Println("  posctl unjail     -db DIR -validator HEX -epoch N")
	fmt.Println("  posctl status     -db DIR -epoch N")
}

func genKey() {
	id, err := validatorkeys.GenerateIdentity()
	if err != nil {
		log.Fatalf("failed to generate identity: %v", err)
	}
	fmt.Println("Consensus public key:", hex.EncodeToString(id.Consensus.PublicKey[:]))
	fmt.Println("Consensus private key (keep secret):", hex.EncodeToString(id.Consensus.PrivateKey))
	fmt.Println("Ethereum hot key:", hex.EncodeToString(id.EthHot[:]))
	fmt.Println("Ethereum cold key:", hex.EncodeToString(id.EthCold[:]))
}

func openEngine(dbPath string) (*store.DB, *pos.Engine, error) {
	db, err := store.Open(dbPath + "/pos.db")
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return db, pos.New(db, postypes.DefaultParams()), nil
}

func register() {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	addrHex := fs.String("addr", "", "validator address (hex)")
	keyHex := fs.String("key", "", "consensus public key (hex)")
	commission := fs.String("commission", "0.1", "commission rate, decimal")
	maxChange := fs.String("max-change", "0.01", "max commission change per epoch, decimal")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	addr, err := postypes.AddressFromString(*addrHex)
	if err != nil {
		log.Fatalf("invalid -addr: %v", err)
	}
	key, err := decodeConsensusKey(*keyHex)
	if err != nil {
		log.Fatalf("invalid -key: %v", err)
	}
	rate, err := parseDec(*commission)
	if err != nil {
		log.Fatalf("invalid -commission: %v", err)
	}
	maxRate, err := parseDec(*maxChange)
	if err != nil {
		log.Fatalf("invalid -max-change: %v", err)
	}

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *store.Tx) error {
		return engine.BecomeValidator(tx, pos.BecomeValidatorParams{
			Address:             addr,
			ConsensusKey:        key,
			CommissionRate:      rate,
			MaxCommissionChange: maxRate,
		}, postypes.Epoch(*epoch))
	})
	if err != nil {
		log.Fatalf("register failed: %v", err)
	}
	fmt.Printf("validator %s registered, effective at epoch %d\n", addr, *epoch+engine.Params().PipelineLen)
}

func bond() {
	fs := flag.NewFlagSet("bond", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	fromHex := fs.String("from", "", "delegator address (hex)")
	validatorHex := fs.String("validator", "", "validator address (hex)")
	amount := fs.Uint64("amount", 0, "amount to bond")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	from, validator := mustAddrs(*fromHex, *validatorHex)

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *store.Tx) error {
		return engine.Bond(tx, from, validator, postypes.Amount(*amount), postypes.Epoch(*epoch))
	})
	if err != nil {
		log.Fatalf("bond failed: %v", err)
	}
	fmt.Printf("bonded %d from %s to %s, effective at epoch %d\n", *amount, from, validator, *epoch+engine.Params().PipelineLen)
}

func unbond() {
	fs := flag.NewFlagSet("unbond", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	fromHex := fs.String("from", "", "delegator address (hex)")
	validatorHex := fs.String("validator", "", "validator address (hex)")
	amount := fs.Uint64("amount", 0, "amount to unbond")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	from, validator := mustAddrs(*fromHex, *validatorHex)

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	var result postypes.ResultSlashing
	err = db.Update(func(tx *store.Tx) error {
		var innerErr error
		result, innerErr = engine.Unbond(tx, from, validator, postypes.Amount(*amount), postypes.Epoch(*epoch), false)
		return innerErr
	})
	if err != nil {
		log.Fatalf("unbond failed: %v", err)
	}
	fmt.Printf("unbonded %d (post-slash %d) from %s on %s, withdrawable at epoch %d\n",
		*amount, result.Sum, from, validator, *epoch+engine.Params().WithdrawableOffset())
}

func withdraw() {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	fromHex := fs.String("from", "", "delegator address (hex)")
	validatorHex := fs.String("validator", "", "validator address (hex)")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	from, validator := mustAddrs(*fromHex, *validatorHex)

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	var withdrawn postypes.Amount
	err = db.Update(func(tx *store.Tx) error {
		var innerErr error
		withdrawn, innerErr = engine.Withdraw(tx, from, validator, postypes.Epoch(*epoch))
		return innerErr
	})
	if err != nil {
		log.Fatalf("withdraw failed: %v", err)
	}
	fmt.Printf("withdrew %d from %s's unbonds on %s\n", withdrawn, from, validator)
}

func redelegate() {
	fs := flag.NewFlagSet("redelegate", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	fromHex := fs.String("from", "", "delegator address (hex)")
	srcHex := fs.String("src", "", "source validator address (hex)")
	destHex := fs.String("dest", "", "destination validator address (hex)")
	amount := fs.Uint64("amount", 0, "amount to redelegate")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	from, err := postypes.AddressFromString(*fromHex)
	if err != nil {
		log.Fatalf("invalid -from: %v", err)
	}
	src, dest := mustAddrs(*srcHex, *destHex)

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	var result postypes.ResultSlashing
	err = db.Update(func(tx *store.Tx) error {
		var innerErr error
		result, innerErr = engine.Redelegate(tx, from, src, dest, postypes.Amount(*amount), postypes.Epoch(*epoch))
		return innerErr
	})
	if err != nil {
		log.Fatalf("redelegate failed: %v", err)
	}
	fmt.Printf("redelegated %d (post-slash %d) from %s to %s for %s\n", *amount, result.Sum, src, dest, from)
}

func slash() {
	fs := flag.NewFlagSet("slash", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	validatorHex := fs.String("validator", "", "validator address (hex)")
	kind := fs.String("kind", "duplicate_vote", "duplicate_vote|light_client_attack")
	evidenceEpoch := fs.Uint64("evidence-epoch", 0, "epoch the misbehavior occurred in")
	height := fs.Uint64("height", 0, "block height the misbehavior occurred at")
	setUpdateEpoch := fs.Uint64("set-update-epoch", 0, "epoch whose validator set the evidence references")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	validator, err := postypes.AddressFromString(*validatorHex)
	if err != nil {
		log.Fatalf("invalid -validator: %v", err)
	}
	slashKind, err := parseSlashKind(*kind)
	if err != nil {
		log.Fatalf("invalid -kind: %v", err)
	}

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *store.Tx) error {
		return engine.Slash(tx, postypes.Epoch(*epoch), postypes.Epoch(*evidenceEpoch), *height, slashKind, validator, postypes.Epoch(*setUpdateEpoch))
	})
	if err != nil {
		log.Fatalf("slash failed: %v", err)
	}
	fmt.Printf("slash enqueued against %s for %s, processing at epoch %d\n",
		validator, slashKind, postypes.Epoch(*evidenceEpoch).Add(engine.Params().SlashProcessingOffset()))
}

func unjail() {
	fs := flag.NewFlagSet("unjail", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	validatorHex := fs.String("validator", "", "validator address (hex)")
	epoch := fs.Uint64("epoch", 0, "current epoch")
	fs.Parse(os.Args[2:])

	validator, err := postypes.AddressFromString(*validatorHex)
	if err != nil {
		log.Fatalf("invalid -validator: %v", err)
	}

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *store.Tx) error {
		return engine.Unjail(tx, validator, postypes.Epoch(*epoch))
	})
	if err != nil {
		log.Fatalf("unjail failed: %v", err)
	}
	fmt.Printf("validator %s unjailed, effective at epoch %d\n", validator, *epoch+engine.Params().PipelineLen)
}

func status() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dbPath := fs.String("db", "./posd-data", "data directory")
	epoch := fs.Uint64("epoch", 0, "epoch to read the validator set at")
	fs.Parse(os.Args[2:])

	db, engine, err := openEngine(*dbPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	var members []pos.SetMember
	err = db.View(func(tx *store.Tx) error {
		var innerErr error
		members, innerErr = engine.ConsensusSetMembers(tx, postypes.Epoch(*epoch))
		return innerErr
	})
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	fmt.Printf("consensus set at epoch %d (%d members):\n", *epoch, len(members))
	for _, m := range members {
		fmt.Printf("  %s  stake=%d  position=%d\n", m.Address, m.Stake, m.Position)
	}
}

func mustAddrs(a, b string) (postypes.Address, postypes.Address) {
	addrA, err := postypes.AddressFromString(a)
	if err != nil {
		log.Fatalf("invalid address %q: %v", a, err)
	}
	addrB, err := postypes.AddressFromString(b)
	if err != nil {
		log.Fatalf("invalid address %q: %v", b, err)
	}
	return addrA, addrB
}

func decodeConsensusKey(s string) (postypes.ConsensusKey, error) {
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

func parseSlashKind(s string) (postypes.SlashKind, error) {
	switch s {
	case "duplicate_vote":
		return postypes.SlashKindDuplicateVote, nil
	case "light_client_attack":
		return postypes.SlashKindLightClientAttack, nil
	default:
		return postypes.SlashKindUnknown, fmt.Errorf("unknown slash kind %q", s)
	}
}

// parseDec turns a plain decimal string ("0.1", "125") into a Dec,
// scaled by the number of digits after the point.
func parseDec(s string) (postypes.Dec, error) {
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
