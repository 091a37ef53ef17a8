package accountdb

import (
	"strconv"
	"strings"
)

// DefaultSubUIDPath and DefaultSubGIDPath are the conventional absolute
// paths for the subordinate-uid/gid range tables (§6 SUB_UID_COUNT/
// SUB_GID_COUNT keys).
const (
	DefaultSubUIDPath = "/etc/subuid"
	DefaultSubGIDPath = "/etc/subgid"
)

// SubIDEntry is one owner:start:count line of a subordinate-id table.
// Unlike U/S/G/SG, the same owner may appear more than once — this is
// the append-only, duplicate-key table §4.B singles out.
type SubIDEntry struct {
	Owner string
	Start int64
	Count int64
}

const subIDFieldCount = 3

func (e *SubIDEntry) RecordName() string { return e.Owner }
func (e *SubIDEntry) fieldCount() int    { return subIDFieldCount }

func parseSubIDEntry(line string) (*SubIDEntry, bool) {
	f := strings.Split(line, ":")
	if len(f) != subIDFieldCount {
		return nil, false
	}
	start, err := strconv.ParseInt(f[1], 10, 64)
	if err != nil {
		return nil, false
	}
	count, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return nil, false
	}
	return &SubIDEntry{Owner: f[0], Start: start, Count: count}, true
}

func (e *SubIDEntry) serialize() (string, error) {
	if containsBadChar(e.Owner) {
		return "", newErr(KindConstraint, "subid", e.Owner, errConstraint("field contains ':' or newline"))
	}
	line := strings.Join([]string{
		e.Owner, strconv.FormatInt(e.Start, 10), strconv.FormatInt(e.Count, 10),
	}, ":")
	if err := checkEntrySize(line); err != nil {
		return "", err
	}
	return line, nil
}

// SubIDTable is the typed facade over the subuid/subgid tables. It is
// kept separate from Handle's four canonical facades: subordinate-id
// ranges are an independent, append-only namespace, not part of the
// locked U/S/G/SG transaction (§4.B).
type SubIDTable struct {
	*Table[*SubIDEntry]
}

func newSubIDTable(path string) *SubIDTable {
	t := &SubIDTable{Table: NewTable(path, parseSubIDEntry)}
	t.AllowDuplicates = true
	t.DefaultMode = 0644
	return t
}

func NewSubUIDTable() *SubIDTable { return newSubIDTable(DefaultSubUIDPath) }
func NewSubGIDTable() *SubIDTable { return newSubIDTable(DefaultSubGIDPath) }

// RangesFor returns every range owned by owner, in file order.
func (t *SubIDTable) RangesFor(owner string) []*SubIDEntry {
	var out []*SubIDEntry
	for _, rec := range t.All() {
		if rec.Owner == owner {
			out = append(out, rec)
		}
	}
	return out
}

// Allocate appends a fresh, non-overlapping range of the given count
// starting at min (or past the highest end already recorded, whichever
// is greater) and returns the appended entry.
func (t *SubIDTable) Allocate(owner string, min, count int64) (*SubIDEntry, error) {
	next := min
	for _, rec := range t.All() {
		if end := rec.Start + rec.Count; end > next {
			next = end
		}
	}
	rec := &SubIDEntry{Owner: owner, Start: next, Count: count}
	if err := t.Append(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
