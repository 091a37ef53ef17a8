package accountdb

import "fmt"

// Handle is the engine handle design note §9 calls for: it owns the four
// table facades and the locks taken across them, so CLI drivers construct
// exactly one per invocation instead of relying on global state.
type Handle struct {
	Passwd  *Passwd
	Shadow  *Shadow
	Group   *GroupTable
	GShadow *GShadow
}

// NewHandle wires up the four facades against their default paths.
func NewHandle() *Handle {
	return &Handle{
		Passwd:  NewPasswd(),
		Shadow:  NewShadow(),
		Group:   NewGroupTable(),
		GShadow: NewGShadow(),
	}
}

// SetRoot rebases every table under a chroot-style prefix (used by test
// harnesses and the --root flag every CLI driver accepts).
func (h *Handle) SetRoot(root string) {
	h.Passwd.SetName(root + DefaultPasswdPath)
	h.Shadow.SetName(root + DefaultShadowPath)
	h.Group.SetName(root + DefaultGroupPath)
	h.GShadow.SetName(root + DefaultGShadowPath)
}

type lockable interface {
	Lock() error
	Unlock() error
}

// LockAll acquires the dotlock (and, transitively, the suite lock) on
// every table named, in the order given; every driver lists its tables
// in passwd, shadow, group, gshadow order so that two processes never
// take the same locks in opposite orders. On any failure, locks already taken are released before the
// error is returned.
func (h *Handle) LockAll(tables ...lockable) error {
	var taken []lockable
	for _, t := range tables {
		if err := t.Lock(); err != nil {
			for i := len(taken) - 1; i >= 0; i-- {
				taken[i].Unlock()
			}
			return err
		}
		taken = append(taken, t)
	}
	return nil
}

// UnlockAll releases every table's lock, best-effort, returning the first
// error encountered (if any) after attempting all of them.
func (h *Handle) UnlockAll(tables ...lockable) error {
	var firstErr error
	for _, t := range tables {
		if err := t.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unlock: %w", err)
		}
	}
	return firstErr
}

// OpenAll opens all four tables (passwd, shadow, group, gshadow) in
// read-write mode. Callers must have
// already called LockAll.
func (h *Handle) OpenAll() error {
	if err := h.Passwd.Open(ReadWrite); err != nil {
		return err
	}
	if err := h.Shadow.Open(ReadWrite); err != nil {
		return err
	}
	if err := h.Group.Open(ReadWrite); err != nil {
		return err
	}
	if err := h.GShadow.Open(ReadWrite); err != nil {
		return err
	}
	return nil
}

// CloseAll commits every table, returning the first error encountered but
// still attempting to close the rest so a partial commit never leaves a
// table open.
func (h *Handle) CloseAll() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{h.Passwd, h.Shadow, h.Group, h.GShadow} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NeedNSCDFlush reports whether any table committed a change that
// requires an NSS/SSSD cache invalidation.
func (h *Handle) NeedNSCDFlush() bool {
	return h.Passwd.NeedNSCDFlush() || h.Shadow.NeedNSCDFlush() ||
		h.Group.NeedNSCDFlush() || h.GShadow.NeedNSCDFlush()
}
