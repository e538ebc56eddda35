package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notwillk/optload/internal/bitflag"
)

// Flags selects, per failure category, whether a failure is returned as an
// error (Fatal*), logged (Log*), both, or neither.
type Flags uint

const (
	FatalMissing Flags = 1 << iota
	LogMissing
	FatalInvalid
	LogInvalid
	FatalEmpty
	LogEmpty
	FatalNotIterable
	LogNotIterable
)

const (
	// DefaultFlags is used by Load. A missing file is not an error.
	DefaultFlags = FatalInvalid | FatalEmpty | FatalNotIterable
	// DefaultIntoFlags is used by LoadInto. A missing file is an error.
	DefaultIntoFlags = DefaultFlags | FatalMissing
)

// Kind is a failure category.
type Kind int

const (
	MissingFile Kind = iota
	EmptyContent
	InvalidContent
	UnknownFormat
	NotIterable
)

func (k Kind) String() string {
	switch k {
	case MissingFile:
		return "missing file"
	case EmptyContent:
		return "empty content"
	case InvalidContent:
		return "invalid content"
	case UnknownFormat:
		return "unknown format"
	case NotIterable:
		return "not iterable"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) bits() (fatal, logged Flags) {
	switch k {
	case MissingFile:
		return FatalMissing, LogMissing
	case EmptyContent:
		return FatalEmpty, LogEmpty
	case NotIterable:
		return FatalNotIterable, LogNotIterable
	}
	return FatalInvalid, LogInvalid
}

var (
	ErrMissingFile    = errors.New("missing file")
	ErrEmptyContent   = errors.New("empty content")
	ErrInvalidContent = errors.New("invalid content")
	ErrUnknownFormat  = errors.New("unknown format")
	ErrNotIterable    = errors.New("not iterable")
)

func (k Kind) sentinel() error {
	switch k {
	case MissingFile:
		return ErrMissingFile
	case EmptyContent:
		return ErrEmptyContent
	case UnknownFormat:
		return ErrUnknownFormat
	case NotIterable:
		return ErrNotIterable
	}
	return ErrInvalidContent
}

// Error is a load failure returned under a fatal policy.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("loader: %s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("loader: %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind. An UnknownFormat error also
// matches ErrInvalidContent.
func (e *Error) Is(target error) bool {
	if target == e.Kind.sentinel() {
		return true
	}
	return e.Kind == UnknownFormat && target == ErrInvalidContent
}

// Policy is the resolved handling of one failure category.
type Policy int

const (
	PolicySilent Policy = iota
	PolicyLog
	PolicyFatal
)

func (p Policy) String() string {
	switch p {
	case PolicyLog:
		return "warn"
	case PolicyFatal:
		return "fail"
	}
	return "silent"
}

// ParsePolicy accepts "silent", "warn" and "fail".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "":
		return PolicySilent, nil
	case "warn", "log":
		return PolicyLog, nil
	case "fail", "fatal":
		return PolicyFatal, nil
	}
	return PolicySilent, fmt.Errorf("unknown policy %q (want silent, warn or fail)", s)
}

// Flags returns the bits that give kind this policy.
func (p Policy) Flags(kind Kind) Flags {
	fatal, logged := kind.bits()
	switch p {
	case PolicyLog:
		return logged
	case PolicyFatal:
		return fatal
	}
	return 0
}

// Policy resolves the handling of kind. A set fatal bit wins over the log
// bit.
func (f Flags) Policy(kind Kind) Policy {
	fatal, logged := kind.bits()
	switch {
	case bitflag.Has(f, fatal):
		return PolicyFatal
	case bitflag.Has(f, logged):
		return PolicyLog
	}
	return PolicySilent
}

// With returns a copy of f with the bits of kind set to policy p.
func (f Flags) With(kind Kind, p Policy) Flags {
	fatal, logged := kind.bits()
	bitflag.Set(&f, fatal|logged, false)
	bitflag.Set(&f, p.Flags(kind), true)
	return f
}
