package logindefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nonexistent"))
	require.NoError(t, err)
	require.Equal(t, "1000", c.String("UID_MIN"))
	require.Equal(t, "SHA512", c.String("ENCRYPT_METHOD"))
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.defs")
	big := make([]byte, maxConfigSize+1)
	require.NoError(t, os.WriteFile(path, big, 0644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfigFileTooLarge)
}

func TestParseOverridesDefaultsAndKeepsUnknownKeys(t *testing.T) {
	src := []byte("# a comment\n" +
		"\n" +
		"UID_MIN   1500\n" +
		"CREATE_HOME no\n" +
		"SOME_FUTURE_KEY foo bar\n")

	c, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, "1500", c.String("UID_MIN"))
	require.Equal(t, "60000", c.String("UID_MAX"), "unspecified keys keep their default")
	require.False(t, c.Bool("CREATE_HOME"))
	require.Equal(t, "foo bar", c.String("SOME_FUTURE_KEY"))
}

func TestBoolRecognizesYesTrueAndOne(t *testing.T) {
	c, err := Parse([]byte("A yes\nB true\nC 1\nD no\n"))
	require.NoError(t, err)
	require.True(t, c.Bool("A"))
	require.True(t, c.Bool("B"))
	require.True(t, c.Bool("C"))
	require.False(t, c.Bool("D"))
}

func TestInt64RejectsMissingOrEmptyKey(t *testing.T) {
	c, err := Parse([]byte("LASTLOG_UID_MAX\n"))
	require.NoError(t, err)
	_, err = c.Int64("LASTLOG_UID_MAX")
	require.Error(t, err)

	_, err = c.Int64("NEVER_SET")
	require.Error(t, err)
}

func TestFileModeParsesOctalOrFallsBackToDefault(t *testing.T) {
	c, err := Parse([]byte("HOME_MODE 0750\nBAD_MODE not-octal\n"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0750), c.FileMode("HOME_MODE", 0700))
	require.Equal(t, os.FileMode(0700), c.FileMode("BAD_MODE", 0700))
	require.Equal(t, os.FileMode(0700), c.FileMode("ABSENT_MODE", 0700))
}

func TestLoadEnvOverrideOnlyTouchesKeysPresentInEnv(t *testing.T) {
	c, err := Parse([]byte("UID_MIN 2000\n"))
	require.NoError(t, err)

	env := map[string]string{"LOGINDEFS_UID_MIN": "3000"}
	c.LoadEnvOverride(func(k string) string { return env[k] })

	require.Equal(t, "3000", c.String("UID_MIN"))
	require.Equal(t, "60000", c.String("UID_MAX"))
}

func TestUIDAndGIDRangeHelpers(t *testing.T) {
	c, err := Parse([]byte("UID_MIN 2000\nUID_MAX 3000\nSYS_GID_MIN 50\nSYS_GID_MAX 99\n"))
	require.NoError(t, err)

	lo, hi := c.UIDRange()
	require.Equal(t, int64(2000), lo)
	require.Equal(t, int64(3000), hi)

	lo, hi = c.SysGIDRange()
	require.Equal(t, int64(50), lo)
	require.Equal(t, int64(99), hi)
}
