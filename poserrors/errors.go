// Package poserrors defines the PoS engine's error kinds (spec §7) and
// the wrapping convention used to surface them to the transaction
// dispatcher (outside this module). Every fallible engine operation
// returns an error built from one of these Kinds via Wrap/Wrapf, so a
// caller can recover the Kind with KindOf (or test it with Is) regardless of how much call
// stack the error has crossed.
package poserrors

import "github.com/pkg/errors"

// Kind is a stable, dispatcher-facing error classification. The
// textual code a user ultimately sees is Kind.String(), which must
// stay stable across versions (spec §7).
type Kind int

const (
	KindUnknown Kind = iota
	KindNotAValidator
	KindSourceIsValidator
	KindInactiveValidator
	KindValidatorFrozen
	KindUnbondAmountTooLarge
	KindNoUnbondFound
	KindRedelegationSrcEqDest
	KindDelegatorIsValidator
	KindIsChainedRedelegation
	KindCommissionRateNotSet
	KindCommissionChangeTooLarge
	KindConsensusKeyAlreadyInUse
	KindNotJailed
	KindNotEligibleForUnjail
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotAValidator:
		return "not_a_validator"
	case KindSourceIsValidator:
		return "source_is_validator"
	case KindInactiveValidator:
		return "inactive_validator"
	case KindValidatorFrozen:
		return "validator_frozen"
	case KindUnbondAmountTooLarge:
		return "unbond_amount_too_large"
	case KindNoUnbondFound:
		return "no_unbond_found"
	case KindRedelegationSrcEqDest:
		return "redelegation_src_eq_dest"
	case KindDelegatorIsValidator:
		return "delegator_is_validator"
	case KindIsChainedRedelegation:
		return "is_chained_redelegation"
	case KindCommissionRateNotSet:
		return "commission_rate_not_set"
	case KindCommissionChangeTooLarge:
		return "commission_change_too_large"
	case KindConsensusKeyAlreadyInUse:
		return "consensus_key_already_in_use"
	case KindNotJailed:
		return "not_jailed"
	case KindNotEligibleForUnjail:
		return "not_eligible_for_unjail"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// posError pairs a Kind with the pkg/errors-wrapped cause chain so
// errors.Cause(err) and errors.Is still work for callers that only
// have an `error`.
type posError struct {
	kind  Kind
	cause error
}

func (e *posError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.cause.Error()
}

func (e *posError) Unwrap() error { return e.cause }

// New builds a Kind-classified error with a message, stack-annotated
// by pkg/errors the way the rest of the pack wraps storage errors.
func New(kind Kind, msg string) error {
	return &posError{kind: kind, cause: errors.New(msg)}
}

// Wrap classifies an underlying error (typically from the storage
// layer) under kind, preserving it as the cause.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &posError{kind: kind, cause: errors.WithStack(err)}
}

// Wrapf is Wrap with a formatted message prefixed onto err.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &posError{kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// KindOf recovers the Kind from an error produced by this package,
// defaulting to KindUnknown for foreign errors (e.g. a bare storage
// error that never passed through Wrap).
func KindOf(err error) Kind {
	var pe *posError
	if errors.As(err, &pe) {
		return pe.kind
	}
	return KindUnknown
}

// Is reports whether err was classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
