package sysfile

import (
	"io"
	"os"

	"github.com/dchest/safefile"
	"golang.org/x/sys/unix"
)

// OpenNoFollow opens path for reading with close-on-exec and non-blocking
// semantics, refusing to follow a terminal symlink, per §4.B open().
func OpenNoFollow(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// AtomicWriter is the sibling "P+" file a table commit writes before
// renaming it over the original. It wraps dchest/safefile, which already
// implements write-to-sibling-then-fsync-then-rename, grounded on the
// teacher's ingesters/utils/state.go.
type AtomicWriter struct {
	f *safefile.File
}

// CreateAtomic opens a new sibling scratch file ("<path>+") with the
// given mode, ready to receive the full rewritten contents of path.
func CreateAtomic(path string, mode os.FileMode) (*AtomicWriter, error) {
	f, err := safefile.Create(path, mode)
	if err != nil {
		return nil, err
	}
	return &AtomicWriter{f: f}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) { return w.f.Write(p) }
func (w *AtomicWriter) Name() string                { return w.f.Name() }

// Commit fsyncs and renames the scratch file over the original.
func (w *AtomicWriter) Commit() error {
	if err := w.f.File.Sync(); err != nil {
		w.Abort()
		return err
	}
	return w.f.Commit()
}

// Abort discards the scratch file without touching the original. Safe to
// call after a failed Commit.
func (w *AtomicWriter) Abort() {
	name := w.f.Name()
	w.f.File.Close()
	os.Remove(name)
}

var _ io.Writer = (*AtomicWriter)(nil)

// Backup copies path to a sibling "<path>-" file with the same mode,
// owner and mtime, per the §4.B commit algorithm's backup step.
func Backup(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	backupPath := path + "-"
	out, err := os.OpenFile(backupPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if uid, gid, ok := ownerOfStat(fi); ok {
		_ = os.Chown(backupPath, uid, gid)
	}
	return os.Chtimes(backupPath, fi.ModTime(), fi.ModTime())
}

// Chown re-owns path; failures are only surfaced when the caller cares
// (commit aborts the transaction on error, editor/test harnesses may not
// have CAP_CHOWN and tolerate EPERM).
func Chown(path string, uid, gid int) error {
	if uid < 0 || gid < 0 {
		return nil
	}
	err := os.Chown(path, uid, gid)
	if err != nil && os.IsPermission(err) {
		return nil
	}
	return err
}

// Owner is the (uid, gid) recorded against a stat'd file.
type Owner struct {
	UID, GID int
}

// OwnerOf extracts the owning uid/gid from a FileInfo on platforms that
// expose a *unix.Stat_t Sys(), falling back to "not available".
func OwnerOf(fi os.FileInfo) (Owner, bool) {
	uid, gid, ok := ownerOfStat(fi)
	return Owner{UID: uid, GID: gid}, ok
}

func ownerOfStat(fi os.FileInfo) (uid, gid int, ok bool) {
	st, ok := fi.Sys().(*unix.Stat_t)
	if !ok || st == nil {
		return 0, 0, false
	}
	return int(st.Uid), int(st.Gid), true
}

// FsyncDir fsyncs the containing directory of path for commit durability,
// per §4.I step 5's "fsync containing directory".
func FsyncDir(path string) error {
	dir, err := os.Open(dirname(path))
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}

func dirname(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}
