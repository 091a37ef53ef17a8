// Package authn implements the §4.H authentication primitive: verify a
// cleartext candidate against a user's stored hash, throttling wrong
// answers with a configurable fail-delay so WRONG and NO_USER are
// indistinguishable externally.
package authn

import (
	"time"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
)

// Result is the tri-state verify outcome.
type Result int

const (
	OK Result = iota
	Wrong
	NoUser
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Wrong:
		return "WRONG"
	case NoUser:
		return "NO_USER"
	default:
		return "UNKNOWN"
	}
}

// DefaultFailDelay matches the spec's documented default.
const DefaultFailDelay = 2 * time.Second

// Lookup resolves the stored hash for a user name: the shadow hash if a
// shadow record exists, otherwise the passwd password field.
type Lookup interface {
	// Hash returns the stored hash and whether the user exists at all.
	Hash(userName string) (hash string, exists bool)
}

// TableLookup adapts a Handle's Passwd/Shadow facades to Lookup.
type TableLookup struct {
	Passwd *accountdb.Passwd
	Shadow *accountdb.Shadow
}

func (tl TableLookup) Hash(userName string) (string, bool) {
	if s, err := tl.Shadow.Locate(userName); err == nil {
		return s.Hash, true
	}
	u, err := tl.Passwd.Locate(userName)
	if err != nil {
		return "", false
	}
	return u.Password, true
}

// Verifier runs the §4.H primitive against a Lookup, with an injectable
// fail-delay and clock so tests don't have to sleep for real.
type Verifier struct {
	Lookup    Lookup
	FailDelay time.Duration
	Sleep     func(time.Duration)
}

func New(lookup Lookup) *Verifier {
	return &Verifier{Lookup: lookup, FailDelay: DefaultFailDelay, Sleep: time.Sleep}
}

// Verify looks up userName's stored hash and compares candidate against
// it. On any outcome other than OK, it sleeps for FailDelay before
// returning, so a timing side-channel can't distinguish a wrong password
// from an unknown user.
func (v *Verifier) Verify(userName, candidate string) (Result, error) {
	hash, exists := v.Lookup.Hash(userName)
	if !exists {
		v.delay()
		return NoUser, nil
	}
	if password.Locked(hash) {
		v.delay()
		return Wrong, nil
	}
	ok, err := password.Verify(hash, candidate)
	if err != nil {
		v.delay()
		return Wrong, err
	}
	if !ok {
		v.delay()
		return Wrong, nil
	}
	return OK, nil
}

func (v *Verifier) delay() {
	sleep := v.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(v.FailDelay)
}

// RetryLoop drives the interactive PASS_CHANGE_TRIES-bounded retry policy
// for callers like `passwd` and `login`-style verbs. attempt is called
// once per try and should itself call Verify; RetryLoop stops as soon as
// attempt reports success or the try budget is exhausted.
func RetryLoop(maxTries int, attempt func(tryNum int) (bool, error)) (succeeded bool, err error) {
	for i := 0; i < maxTries; i++ {
		ok, aerr := attempt(i)
		if aerr != nil {
			return false, aerr
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
