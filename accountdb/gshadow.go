package accountdb

// GShadow is the typed facade over the SG table (§4.D).
type GShadow struct {
	*Table[*ShadowGroup]
}

func NewGShadow() *GShadow {
	sg := &GShadow{Table: NewTable(DefaultGShadowPath, parseShadowGroup)}
	sg.DefaultMode = 0400
	sg.Validate = sg.validate
	return sg
}

func (sg *GShadow) validate(rec *ShadowGroup) error {
	return ValidateName(rec.Name, true)
}
