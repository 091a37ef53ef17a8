package accountdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shadow-maint/shadow-sub001/internal/sysfile"
)

// OpenMode selects how Table.Open attaches to the backing file.
type OpenMode int

const (
	ReadOnly OpenMode = iota
	ReadWrite
)

// entry is one line of a table: either a parsed record, or an opaque line
// the codec could not parse (comment, blank line, or future/unknown
// format) that must round-trip verbatim. Per design note §9 the list is
// a flat slice with index-based iteration rather than owned
// prev/next pointers.
type entry[R Record] struct {
	rec         R
	opaque      bool
	line        string // raw text, used verbatim when opaque
	modified    bool
	passthrough bool
}

// Table is the file-backed, lock-aware store behind every administrative
// verb (§4.B commonio). R is one of *User, *ShadowUser, *Group,
// *ShadowGroup, *SubIDEntry.
type Table[R Record] struct {
	path string

	parse func(line string) (R, bool)

	// AllowDuplicates permits append-only tables (subordinate-id style)
	// that explicitly tolerate repeated name keys; see §4.B "append".
	AllowDuplicates bool

	// KeepPassthroughAtTail toggles the "network passthrough" ordering
	// rule; the spec makes this a runtime option rather than a
	// compile-time one (§9 open questions).
	KeepPassthroughAtTail bool

	// DefaultMode/DefaultOwnerUID/DefaultOwnerGID are applied when commit
	// creates a file that does not exist yet; an existing file keeps its
	// owner and its permission bits masked with 0664.
	DefaultMode  os.FileMode
	DefaultOwnerUID int
	DefaultOwnerGID int

	// Validate is a table-specific invariant hook run on every record
	// before it is allowed into the in-memory sequence (§4.D facades).
	Validate func(R) error

	entries  []entry[R]
	index    map[string]int // name -> index into entries, -1 if duplicate
	cursor   int
	open     bool
	locked   bool
	modified bool
	readOnly bool

	lock         *sysfile.Dotlock
	needNSCDFlush bool
	deleteOnClose bool
}

// NewTable constructs a table bound to path using the given line parser.
func NewTable[R Record](path string, parse func(string) (R, bool)) *Table[R] {
	return &Table[R]{
		path:        path,
		parse:       parse,
		DefaultMode: 0644,
		index:       map[string]int{},
	}
}

// SetName overrides the default backing path (chroot prefixing, test
// harnesses), per §4.B set_name.
func (t *Table[R]) SetName(path string) { t.path = path }

func (t *Table[R]) Path() string { return t.path }

// Present is a non-intrusive existence check of the backing file.
func (t *Table[R]) Present() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

// Lock acquires the per-file dotlock with the documented 15x1s retry
// policy (short-circuited on permission failure), and raises the
// process-global suite lock.
func (t *Table[R]) Lock() error {
	dl, err := sysfile.Lock(t.path)
	if err != nil {
		if err == sysfile.ErrPermission {
			return newErr(KindLockPerm, t.path, "", err)
		}
		return newErr(KindLockBusy, t.path, "", err)
	}
	t.lock = dl
	t.locked = true
	return nil
}

// LockNoWait makes a single, non-retrying lock attempt.
func (t *Table[R]) LockNoWait() error {
	dl, err := sysfile.LockNoWait(t.path)
	if err != nil {
		if err == sysfile.ErrPermission {
			return newErr(KindLockPerm, t.path, "", err)
		}
		return newErr(KindLockBusy, t.path, "", err)
	}
	t.lock = dl
	t.locked = true
	return nil
}

// Unlock releases the dotlock (and the suite lock, once the process-wide
// count reaches zero).
func (t *Table[R]) Unlock() error {
	if !t.locked {
		return nil
	}
	err := t.lock.Unlock()
	t.locked = false
	t.lock = nil
	return err
}

// Open parses the backing file (if present) into the in-memory sequence.
// ReadWrite requires the table already be locked.
func (t *Table[R]) Open(mode OpenMode) error {
	if mode == ReadWrite && !t.locked {
		return newErr(KindLockPerm, t.path, "", fmt.Errorf("open read-write requires lock"))
	}
	t.readOnly = mode == ReadOnly

	f, err := sysfile.OpenNoFollow(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Per §3 lifecycle: the table is created (empty) on first
			// open if the file is absent.
			t.open = true
			t.entries = nil
			t.index = map[string]int{}
			return nil
		}
		return newErr(KindIO, t.path, "", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	t.entries = nil
	t.index = map[string]int{}
	for sc.Scan() {
		line := sc.Text()
		t.appendParsedLine(line)
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return newErr(KindIO, t.path, "", err)
	}
	t.open = true
	t.modified = false
	return nil
}

func (t *Table[R]) appendParsedLine(line string) {
	idx := len(t.entries)
	rec, ok := t.parse(line)
	if !ok {
		t.entries = append(t.entries, entry[R]{opaque: true, line: line})
		return
	}
	name := rec.RecordName()
	if _, dup := t.index[name]; dup {
		t.index[name] = -1 // duplicate marker; see Locate
	} else {
		t.index[name] = idx
	}
	t.entries = append(t.entries, entry[R]{rec: rec, passthrough: isPassthroughName(name)})
}

// Locate performs a name lookup, setting the cursor on success. It
// returns an Integrity error (without identifying either copy) if more
// than one entry shares the name.
func (t *Table[R]) Locate(name string) (R, error) {
	var zero R
	idx, ok := t.index[name]
	if !ok {
		return zero, newErr(KindNotFound, t.path, name, nil)
	}
	if idx == -1 {
		return zero, newErr(KindIntegrity, t.path, name,
			fmt.Errorf("multiple entries named %q; please fix with pwck/grpck", name))
	}
	t.cursor = idx
	return t.entries[idx].rec, nil
}

// Update replaces the payload of the entry named rec.RecordName(),
// preserving its position, or inserts a new modified entry ahead of the
// first passthrough entry (or at the tail if none / not enabled).
func (t *Table[R]) Update(rec R) error {
	if t.Validate != nil {
		if err := t.Validate(rec); err != nil {
			return err
		}
	}
	name := rec.RecordName()
	if idx, ok := t.index[name]; ok {
		if idx == -1 {
			return newErr(KindIntegrity, t.path, name, fmt.Errorf("multiple entries named %q", name))
		}
		t.entries[idx].rec = rec
		t.entries[idx].opaque = false
		t.entries[idx].modified = true
		t.modified = true
		return nil
	}
	insertAt := len(t.entries)
	if t.KeepPassthroughAtTail {
		for i, e := range t.entries {
			if !e.opaque && e.passthrough {
				insertAt = i
				break
			}
		}
	}
	ent := entry[R]{rec: rec, modified: true, passthrough: isPassthroughName(name)}
	t.entries = append(t.entries, entry[R]{})
	copy(t.entries[insertAt+1:], t.entries[insertAt:])
	t.entries[insertAt] = ent
	t.reindex()
	t.modified = true
	return nil
}

// Append is an unconditional tail insert, used only by tables that
// explicitly permit duplicate keys (AllowDuplicates, e.g. subordinate-id
// ranges).
func (t *Table[R]) Append(rec R) error {
	if !t.AllowDuplicates {
		if _, ok := t.index[rec.RecordName()]; ok {
			return newErr(KindConstraint, t.path, rec.RecordName(), fmt.Errorf("duplicate key on non-duplicate table"))
		}
	}
	t.entries = append(t.entries, entry[R]{rec: rec, modified: true, passthrough: isPassthroughName(rec.RecordName())})
	t.reindex()
	t.modified = true
	return nil
}

// Remove unlinks the named entry. It errors if the name is absent or
// ambiguous.
func (t *Table[R]) Remove(name string) error {
	idx, ok := t.index[name]
	if !ok {
		return newErr(KindNotFound, t.path, name, nil)
	}
	if idx == -1 {
		return newErr(KindIntegrity, t.path, name, fmt.Errorf("multiple entries named %q", name))
	}
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
	t.reindex()
	t.modified = true
	return nil
}

func (t *Table[R]) reindex() {
	t.index = map[string]int{}
	for i, e := range t.entries {
		if e.opaque {
			continue
		}
		name := e.rec.RecordName()
		if _, dup := t.index[name]; dup {
			t.index[name] = -1
		} else {
			t.index[name] = i
		}
	}
	if t.cursor > len(t.entries) {
		t.cursor = len(t.entries)
	}
}

// Rewind resets the iteration cursor to the start of the sequence.
func (t *Table[R]) Rewind() { t.cursor = 0 }

// Next advances the cursor to the next non-opaque entry and returns its
// record. ok is false once iteration is exhausted.
func (t *Table[R]) Next() (rec R, ok bool) {
	for t.cursor < len(t.entries) {
		e := t.entries[t.cursor]
		t.cursor++
		if !e.opaque {
			return e.rec, true
		}
	}
	var zero R
	return zero, false
}

// All materializes every non-opaque record in sequence order.
func (t *Table[R]) All() []R {
	out := make([]R, 0, len(t.entries))
	for _, e := range t.entries {
		if !e.opaque {
			out = append(out, e.rec)
		}
	}
	return out
}

// Sort stably reorders the parsed entries by cmp, leaving any
// passthrough tail untouched. Opaque lines keep their absolute position
// relative to neighbors only insofar as a stable sort preserves it.
func (t *Table[R]) Sort(cmp func(a, b R) bool) {
	// Partition: a stable sort over the whole entries slice using a
	// comparator that always keeps opaque entries where they are
	// relative to each other would be complex; instead we sort the
	// sub-sequence of parsed, non-passthrough entries in place.
	type idxRec struct {
		pos int
		rec R
	}
	var movable []idxRec
	for i, e := range t.entries {
		if !e.opaque && !(t.KeepPassthroughAtTail && e.passthrough) {
			movable = append(movable, idxRec{pos: i, rec: e.rec})
		}
	}
	sort.SliceStable(movable, func(i, j int) bool {
		return cmp(movable[i].rec, movable[j].rec)
	})
	for i, ir := range movable {
		t.entries[ir.pos].rec = movable[i].rec
	}
	t.reindex()
	t.modified = true
}

// SortWRT reorders this table so its entries appear in the same relative
// order as the names listed in order (used to keep shadow tables
// aligned to their primary table after bulk edits); entries whose names
// are not listed sort after the listed ones.
func (t *Table[R]) SortWRT(order []string) {
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	big := len(order) + 1
	t.Sort(func(a, b R) bool {
		pa, oka := pos[a.RecordName()]
		pb, okb := pos[b.RecordName()]
		if !oka {
			pa = big
		}
		if !okb {
			pb = big
		}
		return pa < pb
	})
}

// Modified reports whether any mutator has been called since Open.
func (t *Table[R]) Modified() bool { return t.modified }

// NeedNSCDFlush reports whether the last Close requires an NSS/SSSD cache
// invalidation, per §4.B's "need_nscd_reload" flag.
func (t *Table[R]) NeedNSCDFlush() bool { return t.needNSCDFlush }

// MarkDeleteOnClose tells Close to unlink the backing file entirely
// instead of committing the in-memory sequence — used by the
// shadow<->non-shadow Collapse conversion, which removes the shadow file
// after migrating every hash back into U.password.
func (t *Table[R]) MarkDeleteOnClose() { t.deleteOnClose = true }

// Close commits pending modifications (write sibling + rename) and
// resets the table to the closed state. It is a no-op for bookkeeping
// if nothing was modified, but still clears the open state. The dotlock
// is not released here; that is Unlock's job.
func (t *Table[R]) Close() error {
	if !t.open {
		return nil
	}
	if t.deleteOnClose {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			return newErr(KindIO, t.path, "", err)
		}
		t.needNSCDFlush = true
		t.open = false
		t.modified = false
		t.deleteOnClose = false
		return nil
	}
	if t.modified && !t.readOnly {
		if err := t.commit(); err != nil {
			return err
		}
		t.needNSCDFlush = true
	}
	t.open = false
	t.modified = false
	return nil
}

func (t *Table[R]) commit() error {
	mode := t.DefaultMode
	uid, gid := t.DefaultOwnerUID, t.DefaultOwnerGID
	if fi, err := os.Stat(t.path); err == nil {
		mode = fi.Mode().Perm() & 0664
		if st, ok := sysfile.OwnerOf(fi); ok {
			uid, gid = st.UID, st.GID
		}
		if err := sysfile.Backup(t.path); err != nil {
			return newErr(KindIO, t.path, "", err)
		}
	}

	w, err := sysfile.CreateAtomic(t.path, mode)
	if err != nil {
		return newErr(KindIO, t.path, "", err)
	}
	bw := bufio.NewWriter(w)
	for _, e := range t.entries {
		var line string
		if e.opaque {
			line = e.line
		} else {
			s, err := e.rec.serialize()
			if err != nil {
				w.Abort()
				return err
			}
			line = s
		}
		if _, err := bw.WriteString(line); err != nil {
			w.Abort()
			return newErr(KindIO, t.path, "", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			w.Abort()
			return newErr(KindIO, t.path, "", err)
		}
	}
	if err := bw.Flush(); err != nil {
		w.Abort()
		return newErr(KindIO, t.path, "", err)
	}
	if err := sysfile.Chown(w.Name(), uid, gid); err != nil {
		w.Abort()
		return newErr(KindIO, t.path, "", err)
	}
	if err := w.Commit(); err != nil {
		return newErr(KindIO, t.path, "", err)
	}
	return nil
}
