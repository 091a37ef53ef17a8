package authn

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/sysfile"
)

func TestMain(m *testing.M) {
	sysfile.SuitePath = filepath.Join(os.TempDir(), "shadow-sub001-test.suite.lock")
	os.Exit(m.Run())
}

type fakeLookup map[string]string

func (f fakeLookup) Hash(userName string) (string, bool) {
	h, ok := f[userName]
	return h, ok
}

func noSleep(time.Duration) {}

func TestVerifyOK(t *testing.T) {
	hash, err := password.Hash(password.SHA512, "hunter2", password.Params{})
	require.NoError(t, err)

	v := New(fakeLookup{"alice": hash})
	v.Sleep = noSleep

	res, err := v.Verify("alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, OK, res)
}

func TestVerifyWrongPassword(t *testing.T) {
	hash, err := password.Hash(password.SHA512, "hunter2", password.Params{})
	require.NoError(t, err)

	v := New(fakeLookup{"alice": hash})
	v.Sleep = noSleep

	res, err := v.Verify("alice", "wrong")
	require.NoError(t, err)
	require.Equal(t, Wrong, res)
}

func TestVerifyNoSuchUser(t *testing.T) {
	v := New(fakeLookup{})
	v.Sleep = noSleep

	res, err := v.Verify("ghost", "anything")
	require.NoError(t, err)
	require.Equal(t, NoUser, res)
}

func TestVerifyLockedAccountIsAlwaysWrong(t *testing.T) {
	hash, err := password.Hash(password.SHA512, "hunter2", password.Params{})
	require.NoError(t, err)

	v := New(fakeLookup{"alice": password.Lock(hash)})
	v.Sleep = noSleep

	res, err := v.Verify("alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, Wrong, res)
}

func TestVerifyDelaysOnFailure(t *testing.T) {
	v := New(fakeLookup{})
	v.FailDelay = 5 * time.Millisecond
	var slept time.Duration
	v.Sleep = func(d time.Duration) { slept = d }

	_, err := v.Verify("ghost", "x")
	require.NoError(t, err)
	require.Equal(t, 5*time.Millisecond, slept)
}

func TestRetryLoopSucceedsOnFirstTry(t *testing.T) {
	calls := 0
	ok, err := RetryLoop(3, func(tryNum int) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, calls)
}

func TestRetryLoopExhaustsBudget(t *testing.T) {
	calls := 0
	ok, err := RetryLoop(3, func(tryNum int) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3, calls)
}

func TestRetryLoopPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	ok, err := RetryLoop(3, func(tryNum int) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
}

func TestTableLookupPrefersShadowOverPasswd(t *testing.T) {
	dir := t.TempDir()

	p := accountdb.NewPasswd()
	p.SetName(filepath.Join(dir, "passwd"))
	require.NoError(t, p.LockNoWait())
	defer p.Unlock()
	require.NoError(t, p.Open(accountdb.ReadWrite))
	require.NoError(t, p.Update(&accountdb.User{Name: "alice", Password: "passwd-hash", UID: 1000, GID: 1000, Shell: "/bin/sh"}))

	s := accountdb.NewShadow()
	s.SetName(filepath.Join(dir, "shadow"))
	require.NoError(t, s.LockNoWait())
	defer s.Unlock()
	require.NoError(t, s.Open(accountdb.ReadWrite))
	require.NoError(t, s.Update(&accountdb.ShadowUser{Name: "alice", Hash: "shadow-hash", Min: -1, Max: -1, Warn: -1, Inact: -1, Expire: -1}))

	tl := TableLookup{Passwd: p, Shadow: s}
	h, ok := tl.Hash("alice")
	require.True(t, ok)
	require.Equal(t, "shadow-hash", h)

	h, ok = tl.Hash("nobody")
	require.False(t, ok)
	require.Empty(t, h)
}

func TestTableLookupFallsBackToPasswdWithoutShadowEntry(t *testing.T) {
	dir := t.TempDir()

	p := accountdb.NewPasswd()
	p.SetName(filepath.Join(dir, "passwd"))
	require.NoError(t, p.LockNoWait())
	defer p.Unlock()
	require.NoError(t, p.Open(accountdb.ReadWrite))
	require.NoError(t, p.Update(&accountdb.User{Name: "bob", Password: "inline-hash", UID: 1001, GID: 1001, Shell: "/bin/sh"}))

	s := accountdb.NewShadow()
	s.SetName(filepath.Join(dir, "shadow"))
	require.NoError(t, s.LockNoWait())
	defer s.Unlock()
	require.NoError(t, s.Open(accountdb.ReadWrite))

	tl := TableLookup{Passwd: p, Shadow: s}
	h, ok := tl.Hash("bob")
	require.True(t, ok)
	require.Equal(t, "inline-hash", h)
}
