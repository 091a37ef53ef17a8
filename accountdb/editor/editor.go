// Package editor implements the §4.I transactional editor: the `vipw`
// flow of lock -> snapshot -> spawn $VISUAL/$EDITOR -> validate ->
// commit -> unlock, built on internal/sysfile's dotlock, backup and
// directory-fsync primitives plus an os.Rename of the scratch file over
// the original. Grounded directly on original_source/src/vipw.c's state
// machine (fork/waitpid/WUNTRACED/SIGSTOP-SIGCONT dance), expressed with
// stdlib os/exec + os/signal and golang.org/x/sys/unix for the
// process-group wait — no ecosystem library in the retrieved pack
// wraps this one piece of POSIX job-control plumbing (see DESIGN.md).
package editor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/shadow-maint/shadow-sub001/internal/sysfile"
)

// State names the transaction's position, mirroring spec.md's
// IDLE->LOCKED->SNAPSHOT->EDITING->VALIDATED->COMMITTED->DONE machine.
type State int

const (
	Idle State = iota
	Locked
	Snapshot
	Editing
	Validated
	Committed
	Done
)

// Outcome reports what a Run call actually did.
type Outcome int

const (
	Unchanged     Outcome = iota // editor exited 0, scratch mtime == original mtime
	EditCommitted                // the edit was applied
)

// Validator optionally re-parses the edited scratch file before commit;
// returning an error aborts the transaction (scratch removed, unlocked).
type Validator func(path string) error

// Transaction drives one vipw-style edit of the table at Path.
type Transaction struct {
	Path      string
	Editor    string // resolved from $VISUAL then $EDITOR by the caller
	Validate  Validator
	state     State
}

func New(path, editorCmd string) *Transaction {
	return &Transaction{Path: path, Editor: editorCmd}
}

// ResolveEditor implements the $VISUAL-then-$EDITOR-then-default lookup
// named in spec.md §6.
func ResolveEditor(defaultEditor string) string {
	if v := os.Getenv("VISUAL"); v != "" {
		return v
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return defaultEditor
}

// Run executes the full transaction. It always leaves the table
// unlocked and the scratch file removed on return, whatever the
// outcome.
func (tx *Transaction) Run() (Outcome, error) {
	dl, err := sysfile.Lock(tx.Path)
	if err != nil {
		return Unchanged, fmt.Errorf("editor: lock: %w", err)
	}
	tx.state = Locked
	defer func() {
		dl.Unlock()
		tx.state = Done
	}()

	scratch := tx.Path + ".edit"
	origFI, err := os.Stat(tx.Path)
	var origMode os.FileMode = 0644
	if err == nil {
		origMode = origFI.Mode()
	} else if !os.IsNotExist(err) {
		return Unchanged, fmt.Errorf("editor: stat original: %w", err)
	}
	if err := copyFile(tx.Path, scratch, origMode); err != nil {
		return Unchanged, fmt.Errorf("editor: snapshot: %w", err)
	}
	defer os.Remove(scratch)
	tx.state = Snapshot

	beforeFI, err := os.Stat(scratch)
	if err != nil {
		return Unchanged, fmt.Errorf("editor: stat scratch: %w", err)
	}
	beforeMtime := beforeFI.ModTime()

	tx.state = Editing
	if err := tx.runEditor(scratch); err != nil {
		return Unchanged, err
	}

	afterFI, err := os.Stat(scratch)
	if err != nil {
		return Unchanged, fmt.Errorf("editor: stat scratch after edit: %w", err)
	}
	if afterFI.ModTime().Equal(beforeMtime) {
		// Unchanged: success, no commit.
		return Unchanged, nil
	}
	tx.state = Validated
	if tx.Validate != nil {
		if err := tx.Validate(scratch); err != nil {
			return Unchanged, fmt.Errorf("editor: validation rejected edit: %w", err)
		}
	}

	if err := sysfile.Backup(tx.Path); err != nil {
		return Unchanged, fmt.Errorf("editor: backup: %w", err)
	}
	if err := os.Rename(scratch, tx.Path); err != nil {
		return Unchanged, fmt.Errorf("editor: commit rename: %w", err)
	}
	_ = sysfile.FsyncDir(tx.Path)
	tx.state = Committed
	return EditCommitted, nil
}

// runEditor spawns the editor in its own process group and forwards a stop/continue cycle (^Z) to and from the child's process
// group — the same dance original_source/src/vipw.c performs.
func (tx *Transaction) runEditor(scratch string) error {
	fields := strings.Fields(tx.Editor)
	if len(fields) == 0 {
		return fmt.Errorf("editor: no editor configured")
	}
	args := append(append([]string{}, fields[1:]...), scratch)
	cmd := exec.Command(fields[0], args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("editor: spawn %q: %w", tx.Editor, err)
	}
	pid := cmd.Process.Pid

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTSTP)
	defer signal.Stop(sigs)

	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err != nil {
			return fmt.Errorf("editor: wait: %w", err)
		}
		if ws.Stopped() {
			unix.Kill(os.Getpid(), int(syscall.SIGSTOP))
			unix.Kill(-pid, int(syscall.SIGCONT))
			continue
		}
		if ws.Exited() && ws.ExitStatus() == 0 {
			return nil
		}
		return fmt.Errorf("editor: %q exited abnormally (status %v)", tx.Editor, ws)
	}
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(dst, nil, mode)
		}
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
