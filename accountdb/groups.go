package accountdb

// GroupTable is the typed facade over the G table (§4.D).
type GroupTable struct {
	*Table[*Group]
	AllowBadNames bool
}

func NewGroupTable() *GroupTable {
	g := &GroupTable{Table: NewTable(DefaultGroupPath, parseGroup)}
	g.DefaultMode = 0644
	g.Validate = g.validate
	return g
}

func (g *GroupTable) validate(rec *Group) error {
	if err := ValidateName(rec.Name, g.AllowBadNames); err != nil {
		return err
	}
	if rec.GID == sentinel {
		return newErr(KindConstraint, "group", rec.Name, errConstraint("reserved gid sentinel"))
	}
	seen := make(map[string]struct{}, len(rec.Members))
	for _, m := range rec.Members {
		if _, dup := seen[m]; dup {
			return newErr(KindConstraint, "group", rec.Name, errConstraint("duplicate member "+m))
		}
		seen[m] = struct{}{}
	}
	return nil
}

// LocateByGID scans the sequence for the first entry with the given GID.
func (g *GroupTable) LocateByGID(gid int64) (*Group, bool) {
	for _, rec := range g.All() {
		if rec.GID == gid {
			return rec, true
		}
	}
	return nil, false
}

// UsedGIDs returns the set of GIDs currently present, for the allocator.
func (g *GroupTable) UsedGIDs() map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, rec := range g.All() {
		set[rec.GID] = struct{}{}
	}
	return set
}

// MembersOf returns the name of every group the given user belongs to,
// as a *supplementary* (secondary) member, i.e. not counting primary GID
// membership.
func (g *GroupTable) MembersOf(user string) []string {
	var out []string
	for _, rec := range g.All() {
		for _, m := range rec.Members {
			if m == user {
				out = append(out, rec.Name)
				break
			}
		}
	}
	return out
}
