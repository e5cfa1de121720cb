package runtimeconfig

// Shape is the runtime configuration as it crosses the service boundary.
// Every field is optional. The five booleans are independent fields here;
// only RuntimeConfiguration derives them from the memory selector.
type Shape struct {
	TagsInField              *uint16 `json:"tagsInField,omitempty"`
	MemorySelector           *uint16 `json:"memorySelector,omitempty"`
	EPCLength                *uint16 `json:"epcLength,omitempty"`
	TIDLength                *uint16 `json:"tidLength,omitempty"`
	UserLength               *uint16 `json:"userLength,omitempty"`
	SelectionMaskCount       *uint16 `json:"selectionMaskCount,omitempty"`
	SelectionMaskMaxLength   *uint16 `json:"selectionMaskMaxLength,omitempty"`
	CustomOperationMaxLength *uint16 `json:"customOperationMaxLength,omitempty"`

	IncludeKillPwd   *bool `json:"includeKillPwd,omitempty"`
	IncludeAccessPwd *bool `json:"includeAccessPwd,omitempty"`
	IncludeCRC       *bool `json:"includeCRC,omitempty"`
	IncludePC        *bool `json:"includePC,omitempty"`
	IncludeXPC       *bool `json:"includeXPC,omitempty"`
}

// lengthField returns the shape slot holding l.
func (s *Shape) lengthField(l Length) **uint16 {
	switch l {
	case TagsInField:
		return &s.TagsInField
	case EPCLength:
		return &s.EPCLength
	case TIDLength:
		return &s.TIDLength
	case UserLength:
		return &s.UserLength
	case SelectionMaskCount:
		return &s.SelectionMaskCount
	case SelectionMaskMaxLength:
		return &s.SelectionMaskMaxLength
	case CustomOperationMaxLength:
		return &s.CustomOperationMaxLength
	}
	return nil
}

// flagField returns the shape slot holding f.
func (s *Shape) flagField(f Flag) **bool {
	switch f {
	case IncludeKillPwd:
		return &s.IncludeKillPwd
	case IncludeAccessPwd:
		return &s.IncludeAccessPwd
	case IncludeCRC:
		return &s.IncludeCRC
	case IncludePC:
		return &s.IncludePC
	case IncludeXPC:
		return &s.IncludeXPC
	}
	return nil
}

// Missing returns the wire names of absent fields, in register order.
func (s *Shape) Missing() []string {
	if s == nil {
		s = &Shape{}
	}

	var missing []string
	for _, l := range Lengths() {
		if *s.lengthField(l) == nil {
			missing = append(missing, l.String())
		}
		if l == TagsInField && s.MemorySelector == nil {
			missing = append(missing, "memorySelector")
		}
	}
	for _, f := range flagOrder {
		if *s.flagField(f) == nil {
			missing = append(missing, f.String())
		}
	}
	return missing
}

// Complete reports whether every field is present.
func (s *Shape) Complete() bool {
	return len(s.Missing()) == 0
}

// Uint16 returns a pointer to v, for building shapes by hand.
func Uint16(v uint16) *uint16 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
