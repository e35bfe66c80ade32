// Package postypes holds the value types shared by every PoS package:
// addresses, epochs, token amounts, fixed-point rates and the validator
// record shape. None of these types know how to persist themselves —
// that is the store package's job.
package postypes

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Address is an opaque validator or delegator identifier. The PoS core
// never constructs one; it is handed addresses by the token/balance
// and consensus layers named in spec §1.
type Address [20]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address (used to detect an
// unset "source" defaulting to self-bond).
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText renders a as hex, letting it serve as a JSON object key
// (encoding/json only accepts map keys that are strings, integers, or
// implement encoding.TextMarshaler) — needed because the slashing and
// redelegation ledgers are keyed by Address in nested maps stored as
// JSON blobs.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText is MarshalText's inverse.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := AddressFromString(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// AddressFromString is a convenience constructor for tests and the
// demo CLI; it does not validate checksum formats since address
// derivation is outside this module's scope.
func AddressFromString(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Epoch is a consensus epoch number. Epochs are totally ordered and
// arithmetic on them never wraps in practice (a chain's lifetime is
// far short of 2^64 epochs).
type Epoch uint64

// Add returns e+offset.
func (e Epoch) Add(offset uint64) Epoch { return e + Epoch(offset) }

// Sub returns e-offset, saturating at 0 rather than underflowing.
func (e Epoch) Sub(offset uint64) Epoch {
	if uint64(e) < offset {
		return 0
	}
	return e - Epoch(offset)
}

// Prev returns e-1, saturating at 0.
func (e Epoch) Prev() Epoch { return e.Sub(1) }

// Amount is a non-negative token quantity in the smallest unit.
type Amount uint64

// Sub returns a-b, clamped to 0 instead of underflowing — mirrors the
// original's checked_sub().unwrap_or_default() pattern used throughout
// the slashing math.
func (a Amount) Sub(b Amount) Amount {
	if a < b {
		return 0
	}
	return a - b
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Delta is a signed change to a stake total; bond deltas are positive,
// unbond/slash deltas are negative.
type Delta int64

// AmountAddDelta applies a signed change to a, clamping at 0 rather
// than underflowing (a slash or unbond can never be validated to drive
// a validator's recorded stake negative, but defensive clamping keeps
// the set-management arithmetic total).
func AmountAddDelta(a Amount, d Delta) Amount {
	signed := int64(a) + int64(d)
	if signed < 0 {
		return 0
	}
	return Amount(signed)
}

// Dec is a fixed-point decimal in, conventionally, [0,1] for rates,
// represented as a ratio of big.Ints scaled by 10^precision. Using
// big.Rat keeps the cubic-rate squaring exact rather than accumulating
// floating point error across many validators and epochs.
type Dec struct {
	r *big.Rat
}

// NewDec builds a Dec from an integer numerator over 10^denomExp.
func NewDec(num int64, denomExp uint64) Dec {
	denom := new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(denomExp), nil)
	return Dec{r: new(big.Rat).SetFrac(big.NewInt(num), denom)}
}

// DecFromAmount promotes a whole-number Amount to a Dec.
func DecFromAmount(a Amount) Dec {
	return Dec{r: new(big.Rat).SetInt(new(big.Int).SetUint64(uint64(a)))}
}

// ZeroDec is the additive identity.
func ZeroDec() Dec { return Dec{r: new(big.Rat)} }

// OneDec is the multiplicative identity, and the slash-rate ceiling.
func OneDec() Dec { return NewDec(1, 0) }

func (d Dec) ensure() *big.Rat {
	if d.r == nil {
		return new(big.Rat)
	}
	return d.r
}

// Add returns d+other.
func (d Dec) Add(other Dec) Dec {
	return Dec{r: new(big.Rat).Add(d.ensure(), other.ensure())}
}

// Mul returns d*other.
func (d Dec) Mul(other Dec) Dec {
	return Dec{r: new(big.Rat).Mul(d.ensure(), other.ensure())}
}

// Quo returns d/other; dividing by zero returns ZeroDec rather than
// panicking, matching the engine's "no infracting stake yet" case.
func (d Dec) Quo(other Dec) Dec {
	if other.ensure().Sign() == 0 {
		return ZeroDec()
	}
	return Dec{r: new(big.Rat).Quo(d.ensure(), other.ensure())}
}

// Min returns the smaller of d and other.
func (d Dec) Min(other Dec) Dec {
	if d.ensure().Cmp(other.ensure()) <= 0 {
		return d
	}
	return other
}

// GT reports whether d > other.
func (d Dec) GT(other Dec) bool { return d.ensure().Cmp(other.ensure()) > 0 }

// LT reports whether d < other.
func (d Dec) LT(other Dec) bool { return d.ensure().Cmp(other.ensure()) < 0 }

// MulCeil multiplies an Amount by d, rounding the fractional remainder
// up. Namada's `mul_ceil` is used for slash-amount computation so that
// a validator is never left holding fractional dust it should have
// lost.
func (d Dec) MulCeil(a Amount) Amount {
	prod := new(big.Rat).Mul(d.ensure(), new(big.Rat).SetInt(new(big.Int).SetUint64(uint64(a))))
	num := new(big.Int).Set(prod.Num())
	den := new(big.Int).Set(prod.Denom())
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return Amount(^uint64(0))
	}
	return Amount(q.Uint64())
}

func (d Dec) String() string {
	return d.ensure().FloatString(6)
}
