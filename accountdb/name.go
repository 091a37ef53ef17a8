package accountdb

import "regexp"

// MaxNameLength bounds U/G names, matching the on-disk field width the
// original engine reserves.
const MaxNameLength = 32

var strictNameRE = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

// ValidateName enforces the syntactic class shared by U.name and G.name:
// lower-case letter or underscore first, then letters/digits/underscore/
// dash, an optional trailing '$', within MaxNameLength. allowBad relaxes
// everything except the two characters that would corrupt the wire
// format: ':' and newline.
func ValidateName(name string, allowBad bool) error {
	if name == "" {
		return newErr(KindConstraint, "", name, errConstraint("empty name"))
	}
	if len(name) > MaxNameLength {
		return newErr(KindConstraint, "", name, errConstraint("name too long"))
	}
	if containsBadChar(name) {
		return newErr(KindConstraint, "", name, errConstraint("name contains ':' or newline"))
	}
	if allowBad {
		return nil
	}
	if !strictNameRE.MatchString(name) {
		return newErr(KindConstraint, "", name, errConstraint("name fails syntax check"))
	}
	return nil
}
