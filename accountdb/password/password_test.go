package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	methods := []Method{DES, MD5, SHA256, SHA512, BCRYPT, YESCRYPT}
	for _, m := range methods {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			hash, err := Hash(m, "correct horse battery staple", Params{})
			require.NoError(t, err)
			require.NotEmpty(t, hash)

			ok, err := Verify(hash, "correct horse battery staple")
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = Verify(hash, "wrong password")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestHashNoneStoresCleartext(t *testing.T) {
	hash, err := Hash(NONE, "whatever", Params{})
	require.NoError(t, err)
	require.Equal(t, "whatever", hash)
}

func TestVerifyMalformedHash(t *testing.T) {
	_, err := Verify("not-a-recognizable-hash-format", "x")
	require.ErrorIs(t, err, ErrMalformedHash)
}

func TestLockUnlock(t *testing.T) {
	hash, err := Hash(SHA512, "secret", Params{})
	require.NoError(t, err)
	require.False(t, Locked(hash))

	locked := Lock(hash)
	require.True(t, Locked(locked))
	require.Equal(t, "!"+hash, locked)

	// Locking twice is idempotent.
	require.Equal(t, locked, Lock(locked))

	unlocked := Unlock(locked)
	require.Equal(t, hash, unlocked)
	require.False(t, Locked(unlocked))
}

func TestParseMethodRoundTrip(t *testing.T) {
	for _, name := range []string{"NONE", "DES", "MD5", "SHA256", "SHA512", "BCRYPT", "YESCRYPT"} {
		m, err := ParseMethod(name)
		require.NoError(t, err)
		require.Equal(t, name, m.String())
	}
}

func TestParseMethodUnknown(t *testing.T) {
	_, err := ParseMethod("ROT13")
	require.Error(t, err)
}

func TestVerifyAcceptsAPreviouslyLockedHash(t *testing.T) {
	hash, err := Hash(SHA256, "secret", Params{})
	require.NoError(t, err)
	locked := Lock(hash)

	ok, err := Verify(locked, "secret")
	require.NoError(t, err)
	require.True(t, ok)
}
