package accountdb

// Shadow is the typed facade over the S table (§4.D). Shadow records are
// 0400 root:root by default, since they hold password hashes.
type Shadow struct {
	*Table[*ShadowUser]
}

func NewShadow() *Shadow {
	s := &Shadow{Table: NewTable(DefaultShadowPath, parseShadowUser)}
	s.DefaultMode = 0400
	s.Validate = s.validate
	return s
}

func (s *Shadow) validate(sp *ShadowUser) error {
	return ValidateName(sp.Name, true) // foreign key into U; U enforces syntax on create
}
