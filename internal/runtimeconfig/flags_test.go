package runtimeconfig

import "testing"

func TestFlagBits(t *testing.T) {
	tests := []struct {
		flag Flag
		bit  uint
		name string
	}{
		{IncludeKillPwd, 0, "includeKillPwd"},
		{IncludeAccessPwd, 1, "includeAccessPwd"},
		{IncludeCRC, 2, "includeCRC"},
		{IncludePC, 3, "includePC"},
		{IncludeXPC, 4, "includeXPC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if uint16(tt.flag) != 1<<tt.bit {
				t.Errorf("%s = 0b%05b, want bit %d", tt.name, uint16(tt.flag), tt.bit)
			}
			if tt.flag.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.flag.String(), tt.name)
			}
			parsed, err := ParseFlag(tt.name)
			if err != nil {
				t.Fatalf("ParseFlag(%q) error = %v", tt.name, err)
			}
			if parsed != tt.flag {
				t.Errorf("ParseFlag(%q) = %v, want %v", tt.name, parsed, tt.flag)
			}
		})
	}

	if FlagMask != 0x1F {
		t.Errorf("FlagMask = 0x%04X, want 0x001F", uint16(FlagMask))
	}
}

func TestFlagsOrder(t *testing.T) {
	flags := Flags()
	if len(flags) != 5 {
		t.Fatalf("len(Flags()) = %d, want 5", len(flags))
	}
	for i, f := range flags {
		if uint16(f) != 1<<uint(i) {
			t.Errorf("Flags()[%d] = %v, want bit %d", i, f, i)
		}
	}

	// Returned slice is a copy.
	flags[0] = IncludeXPC
	if Flags()[0] != IncludeKillPwd {
		t.Error("Flags() exposes internal order slice")
	}
}

func TestParseFlagUnknown(t *testing.T) {
	if _, err := ParseFlag("includeEPC"); err == nil {
		t.Error("ParseFlag(includeEPC) should fail")
	}
}

func TestReadFlag(t *testing.T) {
	tests := []struct {
		sel  Selector
		flag Flag
		want bool
	}{
		{0, IncludeKillPwd, false},
		{0b00001, IncludeKillPwd, true},
		{0b00010, IncludeKillPwd, false},
		{0b10101, IncludeKillPwd, true},
		{0b10101, IncludeAccessPwd, false},
		{0b10101, IncludeCRC, true},
		{0b10101, IncludePC, false},
		{0b10101, IncludeXPC, true},
		{0xFFE0, IncludeXPC, false},
		{0xFFFF, IncludePC, true},
	}

	for _, tt := range tests {
		if got := ReadFlag(tt.sel, tt.flag); got != tt.want {
			t.Errorf("ReadFlag(0x%04X, %v) = %v, want %v", uint16(tt.sel), tt.flag, got, tt.want)
		}
	}
}

func TestWriteFlagPreservesOtherBits(t *testing.T) {
	samples := []Selector{0x0000, 0x0001, 0x0015, 0x001F, 0x0020, 0x00A5, 0x5A5A, 0x8000, 0xFFE0, 0xFFFF}

	for _, sel := range samples {
		for _, f := range Flags() {
			for _, on := range []bool{true, false} {
				got := WriteFlag(sel, f, on)

				if ReadFlag(got, f) != on {
					t.Errorf("WriteFlag(0x%04X, %v, %v) = 0x%04X, flag not applied", uint16(sel), f, on, uint16(got))
				}
				if got&^Selector(f) != sel&^Selector(f) {
					t.Errorf("WriteFlag(0x%04X, %v, %v) = 0x%04X, other bits changed", uint16(sel), f, on, uint16(got))
				}
				if again := WriteFlag(got, f, on); again != got {
					t.Errorf("WriteFlag not idempotent: 0x%04X then 0x%04X", uint16(got), uint16(again))
				}
			}
		}
	}
}

func TestWriteFlagAllCombinations(t *testing.T) {
	for want := Selector(0); want < 32; want++ {
		var sel Selector
		for i, f := range Flags() {
			sel = WriteFlag(sel, f, want&(1<<uint(i)) != 0)
		}
		if sel != want {
			t.Errorf("packing combination %05b produced %05b", uint16(want), uint16(sel))
		}
		for i, f := range Flags() {
			if ReadFlag(sel, f) != (want&(1<<uint(i)) != 0) {
				t.Errorf("combination %05b: ReadFlag(%v) mismatch", uint16(want), f)
			}
		}
	}
}

func TestLengthNames(t *testing.T) {
	want := []string{
		"tagsInField",
		"epcLength",
		"tidLength",
		"userLength",
		"selectionMaskCount",
		"selectionMaskMaxLength",
		"customOperationMaxLength",
	}

	lengths := Lengths()
	if len(lengths) != len(want) {
		t.Fatalf("len(Lengths()) = %d, want %d", len(lengths), len(want))
	}
	for i, l := range lengths {
		if l.String() != want[i] {
			t.Errorf("Lengths()[%d] = %q, want %q", i, l.String(), want[i])
		}
		parsed, err := ParseLength(want[i])
		if err != nil || parsed != l {
			t.Errorf("ParseLength(%q) = %v, %v", want[i], parsed, err)
		}
		if l.Label() == "" {
			t.Errorf("%s has no label", l)
		}
	}

	if _, err := ParseLength("memorySelector"); err == nil {
		t.Error("memorySelector is not a length field")
	}
	if Length(99).String() != "Length(99)" {
		t.Errorf("invalid Length String() = %q", Length(99).String())
	}
}
