package accountdb

// DefaultPasswdPath and its siblings are the conventional absolute paths
// of the four tables; every facade constructor defaults to these but
// accepts an override via Table.SetName for chroot prefixes and tests.
const (
	DefaultPasswdPath  = "/etc/passwd"
	DefaultShadowPath  = "/etc/shadow"
	DefaultGroupPath   = "/etc/group"
	DefaultGShadowPath = "/etc/gshadow"
)

// Passwd is the typed facade over the U table (§4.D).
type Passwd struct {
	*Table[*User]
	AllowBadNames bool
}

// NewPasswd constructs the U facade bound to the default path, with
// ownership/mode defaults (root:root, 0644) and the facade's own
// per-record invariant check wired into Table.Validate.
func NewPasswd() *Passwd {
	p := &Passwd{Table: NewTable(DefaultPasswdPath, parseUser)}
	p.DefaultMode = 0644
	p.Validate = p.validate
	return p
}

func (p *Passwd) validate(u *User) error {
	if err := ValidateName(u.Name, p.AllowBadNames); err != nil {
		return err
	}
	if u.UID == sentinel {
		return newErr(KindConstraint, "passwd", u.Name, errConstraint("reserved uid sentinel"))
	}
	if u.GID == sentinel {
		return newErr(KindConstraint, "passwd", u.Name, errConstraint("reserved gid sentinel"))
	}
	if containsBadChar(u.Gecos) || containsBadChar(u.Home) || containsBadChar(u.Shell) {
		return newErr(KindConstraint, "passwd", u.Name, errConstraint("field contains ':' or newline"))
	}
	return nil
}

// LocateByUID scans the sequence for the first entry with the given UID.
func (p *Passwd) LocateByUID(uid int64) (*User, bool) {
	for _, u := range p.All() {
		if u.UID == uid {
			return u, true
		}
	}
	return nil, false
}

// UsedUIDs returns the set of UIDs currently present, for the allocator.
func (p *Passwd) UsedUIDs() map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, u := range p.All() {
		set[u.UID] = struct{}{}
	}
	return set
}
