// Package reason defines the machine-readable failure codes shared by the
// classifier, the sanitization pipeline and the command surface.
//
// Every error produced by datasanitizer is marked with exactly one code so the
// front end can render an accurate message instead of a generic failure.
package reason

import (
	"github.com/cockroachdb/errors"
)

// Code is a stable, machine-distinguishable failure cause.
type Code string

const (
	None                 Code = "None"
	EnumerationError     Code = "EnumerationError"
	UnresolvedIdentifier Code = "UnresolvedIdentifier"
	SystemVolume         Code = "SystemVolume"
	NotWritable          Code = "NotWritable"
	Excluded             Code = "Excluded"
	PreconditionFailed   Code = "PreconditionFailed"
	ConfirmationRequired Code = "ConfirmationRequired"
	SafetyNotConfirmed   Code = "SafetyNotConfirmed"
	AlreadyInProgress    Code = "AlreadyInProgress"
	AccessDenied         Code = "AccessDenied"
	IOError              Code = "IOError"
	VerificationFailed   Code = "VerificationFailed"
	Cancelled            Code = "Cancelled"
	InvalidRequest       Code = "InvalidRequest"
	Internal             Code = "Internal"
)

// sentinels маркируют ошибки; при двух метках на одном уровне Of берёт первую по порядку.
var sentinels = []struct {
	code Code
	err  error
}{
	{SystemVolume, errors.New("system volume")},
	{UnresolvedIdentifier, errors.New("unresolved identifier")},
	{NotWritable, errors.New("volume not writable")},
	{Excluded, errors.New("volume excluded by policy")},
	{ConfirmationRequired, errors.New("confirmation required")},
	{SafetyNotConfirmed, errors.New("safety not confirmed")},
	{PreconditionFailed, errors.New("precondition failed")},
	{AlreadyInProgress, errors.New("already in progress")},
	{AccessDenied, errors.New("access denied")},
	{VerificationFailed, errors.New("verification failed")},
	{Cancelled, errors.New("cancelled")},
	{IOError, errors.New("i/o error")},
	{EnumerationError, errors.New("enumeration failed")},
	{InvalidRequest, errors.New("invalid request")},
}

// Sentinel returns the mark used for code, or nil for codes without one.
func Sentinel(code Code) error {
	for _, s := range sentinels {
		if s.code == code {
			return s.err
		}
	}
	return nil
}

// New creates an error marked with code.
func New(code Code, format string, args ...interface{}) error {
	return mark(errors.Newf(format, args...), code)
}

// Wrap annotates err and marks it with code. A nil err yields nil.
func Wrap(err error, code Code, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return mark(errors.Wrapf(err, format, args...), code)
}

// WithHint attaches a user-facing hint to err.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return errors.WithHint(err, hint)
}

// Hints returns the hints attached to err, if any.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}

func mark(err error, code Code) error {
	if s := Sentinel(code); s != nil {
		return errors.Mark(err, s)
	}
	return err
}

// Of returns the code err was marked with. When several codes are present the
// outermost mark wins. Unmarked errors map to Internal, a nil error to None.
func Of(err error) Code {
	if err == nil {
		return None
	}
	for level := err; level != nil; level = errors.UnwrapOnce(level) {
		inner := errors.UnwrapOnce(level)
		for _, s := range sentinels {
			if errors.Is(level, s.err) && (inner == nil || !errors.Is(inner, s.err)) {
				return s.code
			}
		}
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	if err == nil {
		return code == None
	}
	s := Sentinel(code)
	return s != nil && errors.Is(err, s)
}

// Retryable reports whether a caller may retry an operation that failed with code.
// Only host queries are transient; safety and protocol failures are permanent for the
// current volume state.
func Retryable(code Code) bool {
	return code == EnumerationError
}
