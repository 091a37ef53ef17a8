package accountdb

import "errors"

// Kind classifies an engine error per the error taxonomy every caller maps
// to a CLI exit code.
type Kind int

const (
	KindIO Kind = iota
	KindParse
	KindIntegrity
	KindConstraint
	KindNotFound
	KindPolicy
	KindLockBusy
	KindLockPerm
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindIntegrity:
		return "integrity"
	case KindConstraint:
		return "constraint"
	case KindNotFound:
		return "not-found"
	case KindPolicy:
		return "policy"
	case KindLockBusy:
		return "lock-busy"
	case KindLockPerm:
		return "lock-perm"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is the engine's typed error. Callers use errors.As to recover the
// Kind and map it to an exit code; they never string-match Error().
type Error struct {
	Kind    Kind
	Table   string
	Name    string
	Wrapped error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Table != "" {
		msg += " [" + e.Table + "]"
	}
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func newErr(kind Kind, table, name string, wrapped error) *Error {
	return &Error{Kind: kind, Table: table, Name: name, Wrapped: wrapped}
}

// Is allows errors.Is(err, accountdb.ErrNotFound) style checks against a
// bare Kind sentinel without a Name/Table attached.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind && te.Name == "" && te.Table == ""
	}
	return false
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrIntegrity  = &Error{Kind: KindIntegrity}
	ErrConstraint = &Error{Kind: KindConstraint}
	ErrLockBusy   = &Error{Kind: KindLockBusy}
	ErrLockPerm   = &Error{Kind: KindLockPerm}
	ErrIO         = &Error{Kind: KindIO}
)
