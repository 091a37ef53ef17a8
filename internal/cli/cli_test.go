package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/internal/sysfile"
)

func TestMain(m *testing.M) {
	sysfile.SuitePath = filepath.Join(os.TempDir(), "shadow-sub001-test.suite.lock")
	os.Exit(m.Run())
}

func TestExitCodeForNilIsSuccess(t *testing.T) {
	require.Equal(t, Success, ExitCodeFor(nil))
}

func TestExitCodeForUnrecognizedErrorIsNoPerm(t *testing.T) {
	require.Equal(t, NoPerm, ExitCodeFor(errors.New("boom")))
}

func TestExitCodeForLockBusy(t *testing.T) {
	err := &accountdb.Error{Kind: accountdb.KindLockBusy}
	require.Equal(t, LockBusyExit, ExitCodeFor(err))
}

func TestExitCodeForNotFoundDispatchesByTable(t *testing.T) {
	cases := []struct {
		table string
		want  int
	}{
		{accountdb.DefaultPasswdPath, PasswdNotFound},
		{accountdb.DefaultShadowPath, ShadowNotFound},
		{accountdb.DefaultGroupPath, GroupNotFound},
		{accountdb.DefaultGShadowPath, GShadowNotFound},
		{"/some/other/file", BadArg},
	}
	for _, c := range cases {
		err := &accountdb.Error{Kind: accountdb.KindNotFound, Table: c.table}
		require.Equal(t, c.want, ExitCodeFor(err))
	}
}

func TestExitCodeForConstraintIsBadArg(t *testing.T) {
	err := &accountdb.Error{Kind: accountdb.KindConstraint}
	require.Equal(t, BadArg, ExitCodeFor(err))
}

func TestBootstrapMissingLoginDefsUsesDefaultsAndRootsHandle(t *testing.T) {
	dir := t.TempDir()
	env, err := Bootstrap("useradd", dir)
	require.NoError(t, err)
	require.Equal(t, "1000", env.Defs.String("UID_MIN"))
	require.Equal(t, dir+accountdb.DefaultPasswdPath, env.Handle.Passwd.Path())
}

func TestBootstrapReadsLoginDefsUnderRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "etc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "etc", "login.defs"), []byte("UID_MIN 5000\n"), 0644))

	env, err := Bootstrap("useradd", dir)
	require.NoError(t, err)
	require.Equal(t, "5000", env.Defs.String("UID_MIN"))
}

func TestBootstrapEmptyRootLeavesDefaultPaths(t *testing.T) {
	env, err := Bootstrap("useradd", "")
	require.NoError(t, err)
	require.Equal(t, accountdb.DefaultPasswdPath, env.Handle.Passwd.Path())
}
