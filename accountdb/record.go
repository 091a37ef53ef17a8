package accountdb

import (
	"strconv"
	"strings"
)

// maxEntrySize defends against runaway GECOS/member-list fields; see §4.A.
const maxEntrySize = 32768

// sentinel is the "field absent" marker for shadow numeric fields.
const sentinel = -1

// Record is implemented by User, ShadowUser, Group and ShadowGroup. Each
// record type knows its own name key, field count and serialization.
type Record interface {
	// RecordName returns the unique name key of the record.
	RecordName() string
	// fieldCount returns the number of colon-separated fields the wire
	// format for this record type requires.
	fieldCount() int
	// serialize renders the record back to its wire line (no trailing
	// newline). Returns an error if the record violates a codec
	// invariant (":" or newline in a field) or would exceed
	// maxEntrySize.
	serialize() (string, error)
}

func isPassthroughName(name string) bool {
	return strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-")
}

func containsBadChar(s string) bool {
	return strings.ContainsAny(s, ":\n")
}

func joinMembers(m []string) string {
	return strings.Join(m, ",")
}

func splitMembers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseDayCount(s string) (int64, error) {
	if s == "" {
		return sentinel, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func formatDayCount(v int64) string {
	if v < 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func checkEntrySize(line string) error {
	if len(line) > maxEntrySize {
		return newErr(KindConstraint, "", "", errConstraint("entry exceeds maximum serialized size"))
	}
	return nil
}

type constraintErr string

func (c constraintErr) Error() string { return string(c) }

func errConstraint(msg string) error { return constraintErr(msg) }

// ---------------------------------------------------------------------
// User record (U): name:pw:uid:gid:gecos:home:shell

type User struct {
	Name     string
	Password string
	UID      int64
	GID      int64
	Gecos    string
	Home     string
	Shell    string
}

const userFieldCount = 7

func (u *User) RecordName() string { return u.Name }
func (u *User) fieldCount() int    { return userFieldCount }

func parseUser(line string) (*User, bool) {
	f := strings.Split(line, ":")
	if len(f) != userFieldCount {
		return nil, false
	}
	uid, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return nil, false
	}
	gid, err := strconv.ParseInt(f[3], 10, 64)
	if err != nil {
		return nil, false
	}
	return &User{
		Name:     f[0],
		Password: f[1],
		UID:      uid,
		GID:      gid,
		Gecos:    f[4],
		Home:     f[5],
		Shell:    f[6],
	}, true
}

func (u *User) serialize() (string, error) {
	if containsBadChar(u.Name) || containsBadChar(u.Password) || containsBadChar(u.Gecos) ||
		containsBadChar(u.Home) || containsBadChar(u.Shell) {
		return "", newErr(KindConstraint, "passwd", u.Name, errConstraint("field contains ':' or newline"))
	}
	if u.UID == sentinel || u.GID == sentinel {
		return "", newErr(KindConstraint, "passwd", u.Name, errConstraint("reserved sentinel uid/gid"))
	}
	line := strings.Join([]string{
		u.Name, u.Password,
		strconv.FormatInt(u.UID, 10), strconv.FormatInt(u.GID, 10),
		u.Gecos, u.Home, u.Shell,
	}, ":")
	if err := checkEntrySize(line); err != nil {
		return "", err
	}
	return line, nil
}

// SetGecos replaces the GECOS comment field, used by usermod/chfn-style
// field edits.
func (u *User) SetGecos(gecos string) { u.Gecos = gecos }

// SetShell replaces the login shell, used by usermod/chsh-style field
// edits.
func (u *User) SetShell(shell string) { u.Shell = shell }

// ---------------------------------------------------------------------
// Shadow-user record (S): name:hash:lstchg:min:max:warn:inact:expire:reserved

type ShadowUser struct {
	Name     string
	Hash     string
	LastChg  int64 // days since epoch; -1 disabled, 0 must-change
	Min      int64
	Max      int64
	Warn     int64
	Inact    int64
	Expire   int64
	Reserved string
}

const shadowFieldCount = 9

func (s *ShadowUser) RecordName() string { return s.Name }
func (s *ShadowUser) fieldCount() int    { return shadowFieldCount }

// Locked reports whether the hash is prefixed with '!' or '*', per §4.E/§4.F.
func (s *ShadowUser) Locked() bool {
	return strings.HasPrefix(s.Hash, "!") || strings.HasPrefix(s.Hash, "*")
}

func parseShadowUser(line string) (*ShadowUser, bool) {
	f := strings.Split(line, ":")
	if len(f) != shadowFieldCount {
		return nil, false
	}
	var vals [6]int64
	raw := [6]string{f[2], f[3], f[4], f[5], f[6], f[7]}
	for i, r := range raw {
		v, err := parseDayCount(r)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return &ShadowUser{
		Name: f[0], Hash: f[1],
		LastChg: vals[0], Min: vals[1], Max: vals[2],
		Warn: vals[3], Inact: vals[4], Expire: vals[5],
		Reserved: f[8],
	}, true
}

func (s *ShadowUser) serialize() (string, error) {
	if containsBadChar(s.Name) || containsBadChar(s.Hash) || containsBadChar(s.Reserved) {
		return "", newErr(KindConstraint, "shadow", s.Name, errConstraint("field contains ':' or newline"))
	}
	line := strings.Join([]string{
		s.Name, s.Hash,
		formatDayCount(s.LastChg), formatDayCount(s.Min), formatDayCount(s.Max),
		formatDayCount(s.Warn), formatDayCount(s.Inact), formatDayCount(s.Expire),
		s.Reserved,
	}, ":")
	if err := checkEntrySize(line); err != nil {
		return "", err
	}
	return line, nil
}

// ---------------------------------------------------------------------
// Group record (G): name:pw:gid:m1,m2,...

type Group struct {
	Name     string
	Password string
	GID      int64
	Members  []string
}

const groupFieldCount = 4

func (g *Group) RecordName() string { return g.Name }
func (g *Group) fieldCount() int    { return groupFieldCount }

func parseGroup(line string) (*Group, bool) {
	f := strings.Split(line, ":")
	if len(f) != groupFieldCount {
		return nil, false
	}
	gid, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return nil, false
	}
	return &Group{Name: f[0], Password: f[1], GID: gid, Members: splitMembers(f[3])}, true
}

func (g *Group) serialize() (string, error) {
	if containsBadChar(g.Name) || containsBadChar(g.Password) {
		return "", newErr(KindConstraint, "group", g.Name, errConstraint("field contains ':' or newline"))
	}
	if g.GID == sentinel {
		return "", newErr(KindConstraint, "group", g.Name, errConstraint("reserved sentinel gid"))
	}
	for _, m := range g.Members {
		if containsBadChar(m) {
			return "", newErr(KindConstraint, "group", g.Name, errConstraint("member name contains ':' or newline"))
		}
	}
	line := strings.Join([]string{g.Name, g.Password, strconv.FormatInt(g.GID, 10), joinMembers(g.Members)}, ":")
	if err := checkEntrySize(line); err != nil {
		return "", err
	}
	return line, nil
}

// AddMember adds member to the group, returning false if already present.
// Supplements spec.md's group facade with groupmems-style single-member edits.
func (g *Group) AddMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return false
		}
	}
	g.Members = append(g.Members, name)
	return true
}

// RemoveMember removes member from the group, returning false if absent.
func (g *Group) RemoveMember(name string) bool {
	for i, m := range g.Members {
		if m == name {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// Shadow-group record (SG): name:hash:admin1,admin2,...:m1,m2,...

type ShadowGroup struct {
	Name    string
	Hash    string
	Admins  []string
	Members []string
}

const gshadowFieldCount = 4

func (sg *ShadowGroup) RecordName() string { return sg.Name }
func (sg *ShadowGroup) fieldCount() int    { return gshadowFieldCount }

func parseShadowGroup(line string) (*ShadowGroup, bool) {
	f := strings.Split(line, ":")
	if len(f) != gshadowFieldCount {
		return nil, false
	}
	return &ShadowGroup{Name: f[0], Hash: f[1], Admins: splitMembers(f[2]), Members: splitMembers(f[3])}, true
}

// AddMember adds member to the group's member list, returning false if
// already present.
func (sg *ShadowGroup) AddMember(name string) bool {
	for _, m := range sg.Members {
		if m == name {
			return false
		}
	}
	sg.Members = append(sg.Members, name)
	return true
}

// RemoveMember removes member from the group's member list, returning
// false if absent.
func (sg *ShadowGroup) RemoveMember(name string) bool {
	for i, m := range sg.Members {
		if m == name {
			sg.Members = append(sg.Members[:i], sg.Members[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAdmin removes name from the group's administrator list,
// returning false if absent.
func (sg *ShadowGroup) RemoveAdmin(name string) bool {
	for i, m := range sg.Admins {
		if m == name {
			sg.Admins = append(sg.Admins[:i], sg.Admins[i+1:]...)
			return true
		}
	}
	return false
}

func (sg *ShadowGroup) serialize() (string, error) {
	if containsBadChar(sg.Name) || containsBadChar(sg.Hash) {
		return "", newErr(KindConstraint, "gshadow", sg.Name, errConstraint("field contains ':' or newline"))
	}
	for _, m := range sg.Admins {
		if containsBadChar(m) {
			return "", newErr(KindConstraint, "gshadow", sg.Name, errConstraint("admin name contains ':' or newline"))
		}
	}
	for _, m := range sg.Members {
		if containsBadChar(m) {
			return "", newErr(KindConstraint, "gshadow", sg.Name, errConstraint("member name contains ':' or newline"))
		}
	}
	line := strings.Join([]string{sg.Name, sg.Hash, joinMembers(sg.Admins), joinMembers(sg.Members)}, ":")
	if err := checkEntrySize(line); err != nil {
		return "", err
	}
	return line, nil
}
