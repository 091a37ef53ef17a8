package sysfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SuitePath = filepath.Join(os.TempDir(), "shadow-sub001-sysfile-test.suite.lock")
	os.Exit(m.Run())
}

func TestLockNoWaitAcquiresAndReleases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	d, err := LockNoWait(path)
	require.NoError(t, err)
	require.NoError(t, d.Unlock())

	_, err = os.Stat(path + ".lock")
	require.True(t, os.IsNotExist(err))
}

func TestLockNoWaitFailsWhenAlreadyHeld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	d1, err := LockNoWait(path)
	require.NoError(t, err)
	defer d1.Unlock()

	_, err = LockNoWait(path)
	require.ErrorIs(t, err, ErrBusy)
}

func TestLockNoWaitReclaimsStaleLockFromDeadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	// Run a process to completion and reuse its now-exited PID as the
	// lock holder, standing in for a crashed process that never cleaned
	// up its dotlock.
	cmd := exec.Command("/bin/true")
	require.NoError(t, cmd.Run())
	exitedPID := cmd.Process.Pid

	require.NoError(t, os.WriteFile(path+".lock", []byte(strconv.Itoa(exitedPID)), 0600))

	d, err := LockNoWait(path)
	require.NoError(t, err)
	require.NoError(t, d.Unlock())
}

func TestAtomicWriterCommitReplacesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, []byte("old contents\n"), 0644))

	w, err := CreateAtomic(path, 0644)
	require.NoError(t, err)
	_, err = w.Write([]byte("new contents\n"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new contents\n", string(got))
}

func TestAtomicWriterAbortLeavesOriginalUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, []byte("old contents\n"), 0644))

	w, err := CreateAtomic(path, 0644)
	require.NoError(t, err)
	_, err = w.Write([]byte("discarded\n"))
	require.NoError(t, err)
	w.Abort()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "old contents\n", string(got))
}

func TestBackupCopiesFileAlongsideWithTrailingDash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shadow")
	require.NoError(t, os.WriteFile(path, []byte("alice:hash:::::::\n"), 0600))

	require.NoError(t, Backup(path))

	got, err := os.ReadFile(path + "-")
	require.NoError(t, err)
	require.Equal(t, "alice:hash:::::::\n", string(got))
}

func TestFsyncDirSucceedsOnExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	require.NoError(t, FsyncDir(path))
}

func TestOpenNoFollowRefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.WriteFile(target, []byte("data"), 0644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	_, err := OpenNoFollow(link)
	require.Error(t, err)
}

func TestOwnerOfReportsCurrentUser(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	owner, ok := OwnerOf(fi)
	require.True(t, ok)
	require.Equal(t, os.Getuid(), owner.UID)
}
