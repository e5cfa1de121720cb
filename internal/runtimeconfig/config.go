package runtimeconfig

// RuntimeConfiguration is the editable runtime configuration of the reader.
//
// The memory selector is the only storage for the five include flags. Scalar
// fields keep track of presence so a partially populated shape round-trips
// without absent values turning into zeros.
type RuntimeConfiguration struct {
	selector    Selector
	hasSelector bool

	lengths    [lengthCount]uint16
	hasLengths [lengthCount]bool
}

// New builds a RuntimeConfiguration from a transfer shape.
//
// A present memorySelector is authoritative and the shape's booleans are
// ignored. Without a selector, present booleans are packed into a selector
// that starts at zero.
func New(shape *Shape) *RuntimeConfiguration {
	rc := &RuntimeConfiguration{}
	if shape == nil {
		return rc
	}

	rc.copyLength(TagsInField, shape.TagsInField)
	rc.copyLength(EPCLength, shape.EPCLength)
	rc.copyLength(TIDLength, shape.TIDLength)
	rc.copyLength(UserLength, shape.UserLength)
	rc.copyLength(SelectionMaskCount, shape.SelectionMaskCount)
	rc.copyLength(SelectionMaskMaxLength, shape.SelectionMaskMaxLength)
	rc.copyLength(CustomOperationMaxLength, shape.CustomOperationMaxLength)

	if shape.MemorySelector != nil {
		rc.SetSelector(Selector(*shape.MemorySelector))
		return rc
	}

	rc.copyFlag(IncludeKillPwd, shape.IncludeKillPwd)
	rc.copyFlag(IncludeAccessPwd, shape.IncludeAccessPwd)
	rc.copyFlag(IncludeCRC, shape.IncludeCRC)
	rc.copyFlag(IncludePC, shape.IncludePC)
	rc.copyFlag(IncludeXPC, shape.IncludeXPC)
	return rc
}

func (rc *RuntimeConfiguration) copyLength(l Length, v *uint16) {
	if v != nil {
		rc.SetLength(l, *v)
	}
}

func (rc *RuntimeConfiguration) copyFlag(f Flag, v *bool) {
	if v != nil {
		rc.SetFlag(f, *v)
	}
}

// Flag reports whether f is set. An absent selector reads as zero.
func (rc *RuntimeConfiguration) Flag(f Flag) bool {
	return ReadFlag(rc.selector, f)
}

// SetFlag sets or clears the bit of f and leaves every other bit alone.
// An absent selector is treated as zero and becomes present.
func (rc *RuntimeConfiguration) SetFlag(f Flag, on bool) {
	rc.selector = WriteFlag(rc.selector, f, on)
	rc.hasSelector = true
}

// Selector returns the packed memory selector and whether it is present.
func (rc *RuntimeConfiguration) Selector() (Selector, bool) {
	return rc.selector, rc.hasSelector
}

// SetSelector replaces the whole memory selector.
func (rc *RuntimeConfiguration) SetSelector(sel Selector) {
	rc.selector = sel
	rc.hasSelector = true
}

// Length returns the value of l and whether it is present.
func (rc *RuntimeConfiguration) Length(l Length) (uint16, bool) {
	if !l.valid() {
		return 0, false
	}
	return rc.lengths[l], rc.hasLengths[l]
}

// LengthOrZero returns the value of l, or 0 when absent.
func (rc *RuntimeConfiguration) LengthOrZero(l Length) uint16 {
	v, _ := rc.Length(l)
	return v
}

// SetLength writes a scalar field. No cross-field checks are applied.
func (rc *RuntimeConfiguration) SetLength(l Length, v uint16) {
	if !l.valid() {
		return
	}
	rc.lengths[l] = v
	rc.hasLengths[l] = true
}

// Flatten converts the configuration back to a transfer shape. Booleans are
// derived from the selector; scalars are copied as they are, absent ones
// stay absent.
func (rc *RuntimeConfiguration) Flatten() *Shape {
	shape := &Shape{
		TagsInField:              rc.lengthPtr(TagsInField),
		EPCLength:                rc.lengthPtr(EPCLength),
		TIDLength:                rc.lengthPtr(TIDLength),
		UserLength:               rc.lengthPtr(UserLength),
		SelectionMaskCount:       rc.lengthPtr(SelectionMaskCount),
		SelectionMaskMaxLength:   rc.lengthPtr(SelectionMaskMaxLength),
		CustomOperationMaxLength: rc.lengthPtr(CustomOperationMaxLength),

		IncludeKillPwd:   Bool(rc.Flag(IncludeKillPwd)),
		IncludeAccessPwd: Bool(rc.Flag(IncludeAccessPwd)),
		IncludeCRC:       Bool(rc.Flag(IncludeCRC)),
		IncludePC:        Bool(rc.Flag(IncludePC)),
		IncludeXPC:       Bool(rc.Flag(IncludeXPC)),
	}
	if rc.hasSelector {
		shape.MemorySelector = Uint16(uint16(rc.selector))
	}
	return shape
}

func (rc *RuntimeConfiguration) lengthPtr(l Length) *uint16 {
	if !rc.hasLengths[l] {
		return nil
	}
	return Uint16(rc.lengths[l])
}

// Clone returns an independent copy.
func (rc *RuntimeConfiguration) Clone() *RuntimeConfiguration {
	cp := *rc
	return &cp
}

// Equal reports whether both configurations hold the same values and presence.
func (rc *RuntimeConfiguration) Equal(other *RuntimeConfiguration) bool {
	if rc == nil || other == nil {
		return rc == other
	}
	return *rc == *other
}
