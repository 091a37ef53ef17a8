// Package aging implements the §4.F aging evaluator: a pure function
// from a shadow record and the current day number to one of six
// outcomes, evaluated in a fixed rule order.
package aging

import (
	"strings"

	"github.com/shadow-maint/shadow-sub001/accountdb"
)

// Outcome is one of the six states §4.F can produce.
type Outcome int

const (
	OK Outcome = iota
	Warn
	MustChange
	ExpiredInact
	LockedByPolicy
	HardExpired
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "OK"
	case Warn:
		return "WARN"
	case MustChange:
		return "MUST_CHANGE"
	case ExpiredInact:
		return "EXPIRED_INACT"
	case LockedByPolicy:
		return "LOCKED_BY_POLICY"
	case HardExpired:
		return "HARD_EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Result bundles an Outcome with WARN's day count; WarnDays is only
// meaningful when Outcome == Warn.
type Result struct {
	Outcome  Outcome
	WarnDays int64
}

// disabled reports the shadow "-1 disables a field" convention.
func disabled(v int64) bool { return v < 0 }

// Evaluate runs the seven-rule §4.F state machine against s as of today
// (a day number, i.e. days since the Unix epoch). It is pure: it never
// mutates s and produces the same Result for the same inputs every time.
func Evaluate(s *accountdb.ShadowUser, today int64) Result {
	// Rule 1: locked hash.
	if strings.HasPrefix(s.Hash, "!") || strings.HasPrefix(s.Hash, "*") {
		return Result{Outcome: LockedByPolicy}
	}
	// Rule 2: must change at next login.
	if s.LastChg == 0 {
		return Result{Outcome: MustChange}
	}
	// Rule 3: hard expiration.
	if !disabled(s.Expire) && today >= s.Expire {
		return Result{Outcome: HardExpired}
	}
	// Rules 4-6 only apply once aging has actually started.
	if s.LastChg > 0 && !disabled(s.Max) {
		if inact := s.Inact; !disabled(inact) {
			if today > addClamped(s.LastChg, s.Max, inact) {
				return Result{Outcome: ExpiredInact}
			}
		}
		mustChangeAt := addClamped(s.LastChg, s.Max, 0)
		if today > mustChangeAt {
			return Result{Outcome: MustChange}
		}
		if s.Warn > 0 && today >= mustChangeAt-s.Warn {
			return Result{Outcome: Warn, WarnDays: mustChangeAt - today}
		}
	}
	return Result{Outcome: OK}
}

// addClamped adds a+b+c, clamping to a sentinel ceiling well below
// int64's range rather than wrapping, per §4.F's "clamp on overflow"
// arithmetic rule.
func addClamped(a, b, c int64) int64 {
	const ceiling = int64(1) << 62 // comfortably below overflow for day counts
	s := a
	for _, v := range []int64{b, c} {
		if v > 0 && s > ceiling-v {
			return ceiling
		}
		s += v
	}
	return s
}
