package aging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadow-maint/shadow-sub001/accountdb"
)

func TestEvaluateLockedHashTakesPriority(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "!$6$abc", LastChg: 1, Max: 90, Expire: -1, Inact: -1}
	r := Evaluate(s, 10000)
	require.Equal(t, LockedByPolicy, r.Outcome)
}

func TestEvaluateMustChangeOnZeroLastChg(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 0, Max: 90, Expire: -1, Inact: -1}
	r := Evaluate(s, 100)
	require.Equal(t, MustChange, r.Outcome)
}

func TestEvaluateHardExpirationBeatsEverythingElse(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: 90, Expire: 200, Inact: -1}
	r := Evaluate(s, 250)
	require.Equal(t, HardExpired, r.Outcome)
}

func TestEvaluateOKWithinWindow(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: 90, Warn: 7, Expire: -1, Inact: -1}
	r := Evaluate(s, 150)
	require.Equal(t, OK, r.Outcome)
}

func TestEvaluateWarnsInsideWarnWindow(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: 90, Warn: 7, Expire: -1, Inact: -1}
	r := Evaluate(s, 185) // mustChangeAt = 190, warn starts at 183
	require.Equal(t, Warn, r.Outcome)
	require.Equal(t, int64(5), r.WarnDays)
}

func TestEvaluateMustChangeAfterMaxElapsed(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: 90, Warn: 7, Expire: -1, Inact: -1}
	r := Evaluate(s, 191)
	require.Equal(t, MustChange, r.Outcome)
}

func TestEvaluateExpiredInactAfterInactGracePeriod(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: 90, Warn: 7, Inact: 10, Expire: -1}
	r := Evaluate(s, 201) // mustChangeAt=190, inact grace ends 200
	require.Equal(t, ExpiredInact, r.Outcome)
}

func TestEvaluateDisabledMaxNeverForcesChange(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: -1, Warn: 7, Inact: -1, Expire: -1}
	r := Evaluate(s, 1_000_000)
	require.Equal(t, OK, r.Outcome)
}

func TestEvaluateIsPure(t *testing.T) {
	s := &accountdb.ShadowUser{Hash: "$6$abc", LastChg: 100, Max: 90, Warn: 7, Inact: -1, Expire: -1}
	before := *s
	Evaluate(s, 150)
	require.Equal(t, before, *s)
}
