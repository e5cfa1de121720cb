package deviceconfig

import (
	"strings"
	"testing"

	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// TestValidateShapeJSON tests schema validation of transfer documents
func TestValidateShapeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"Valid: complete", mockRuntimeConfigResponse, false},
		{"Valid: empty object", `{}`, false},
		{"Valid: partial", `{"memorySelector":8,"epcLength":12}`, false},
		{"Valid: max word", `{"memorySelector":65535}`, false},
		{"Invalid: negative", `{"epcLength":-1}`, true},
		{"Invalid: too large", `{"tagsInField":65536}`, true},
		{"Invalid: fractional", `{"tidLength":1.5}`, true},
		{"Invalid: string scalar", `{"userLength":"4"}`, true},
		{"Invalid: numeric boolean", `{"includeCRC":1}`, true},
		{"Invalid: unknown field", `{"antennaMask":1}`, true},
		{"Invalid: not an object", `[1,2,3]`, true},
		{"Invalid: not JSON", `{memorySelector:}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateShapeJSON([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateShapeJSON(%s) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}
}

func TestDecodeShape(t *testing.T) {
	shape, err := DecodeShape([]byte(`{"memorySelector":21,"epcLength":12}`))
	if err != nil {
		t.Fatalf("DecodeShape() error = %v", err)
	}
	if *shape.MemorySelector != 21 || *shape.EPCLength != 12 {
		t.Errorf("shape = %+v", shape)
	}
	if shape.TagsInField != nil {
		t.Error("absent field decoded as present")
	}

	if _, err := DecodeShape([]byte(`{"epcLength":-3}`)); err == nil {
		t.Error("DecodeShape() should reject negative values")
	}
}

func TestValidateComplete(t *testing.T) {
	if err := ValidateComplete(completeShape()); err != nil {
		t.Errorf("complete shape rejected: %v", err)
	}

	err := ValidateComplete(&runtimeconfig.Shape{MemorySelector: runtimeconfig.Uint16(0)})
	if err == nil {
		t.Fatal("partial shape accepted")
	}
	if !IsValidationError(err) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "tagsInField, epcLength") {
		t.Errorf("missing list not in register order: %v", err)
	}
}

func TestValidateRuntimeConfig(t *testing.T) {
	tests := []struct {
		name  string
		shape *runtimeconfig.Shape
		want  []string
	}{
		{
			name:  "clean",
			shape: completeShape(),
		},
		{
			name:  "reserved bits",
			shape: &runtimeconfig.Shape{MemorySelector: runtimeconfig.Uint16(0x8001)},
			want:  []string{"reserved bits set (0x8000)"},
		},
		{
			name:  "no tags",
			shape: &runtimeconfig.Shape{TagsInField: runtimeconfig.Uint16(0)},
			want:  []string{"tagsInField is 0"},
		},
		{
			name: "masks without length",
			shape: &runtimeconfig.Shape{
				SelectionMaskCount:     runtimeconfig.Uint16(2),
				SelectionMaskMaxLength: runtimeconfig.Uint16(0),
			},
			want: []string{"2 selection masks configured"},
		},
		{
			name:  "length without masks",
			shape: &runtimeconfig.Shape{SelectionMaskMaxLength: runtimeconfig.Uint16(8)},
			want:  []string{"has no effect"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateRuntimeConfig(runtimeconfig.New(tt.shape))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d warnings %v, want %d", len(got), got, len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i].Error(), w) {
					t.Errorf("warning %d = %v, want %q", i, got[i], w)
				}
				if !IsWarning(got[i]) {
					t.Errorf("warning %d not classified as warning", i)
				}
			}
		})
	}
}

// TestFormatValidationErrors tests error formatting
func TestFormatValidationErrors(t *testing.T) {
	t.Run("No errors", func(t *testing.T) {
		result := FormatValidationErrors(nil)
		if result != "No validation errors" {
			t.Errorf("Expected 'No validation errors', got %q", result)
		}
	})

	t.Run("Single error", func(t *testing.T) {
		errors := []error{
			NewValidationError("test error"),
		}
		result := FormatValidationErrors(errors)
		if !strings.Contains(result, "1 error") {
			t.Errorf("Expected '1 error' in output, got: %s", result)
		}
		if !strings.Contains(result, "test error") {
			t.Errorf("Expected 'test error' in output, got: %s", result)
		}
	})

	t.Run("Multiple errors", func(t *testing.T) {
		errors := []error{
			NewValidationError("error 1"),
			NewValidationError("error 2"),
			NewValidationError("error 3"),
		}
		result := FormatValidationErrors(errors)
		if !strings.Contains(result, "3 error") {
			t.Errorf("Expected '3 error' in output, got: %s", result)
		}
	})
}

// TestSeparateWarningsAndErrors tests warning/error separation
func TestSeparateWarningsAndErrors(t *testing.T) {
	errors := []error{
		NewValidationError("critical error 1"),
		NewValidationError("warning: this is a warning"),
		NewValidationError("critical error 2"),
		NewValidationError("warning: another warning"),
	}

	warnings, criticalErrors := SeparateWarningsAndErrors(errors)

	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings, got %d", len(warnings))
	}

	if len(criticalErrors) != 2 {
		t.Errorf("Expected 2 critical errors, got %d", len(criticalErrors))
	}

	// Verify warnings are actually warnings
	for _, w := range warnings {
		if !IsWarning(w) {
			t.Errorf("Expected warning, got: %v", w)
		}
	}

	// Verify critical errors are not warnings
	for _, e := range criticalErrors {
		if IsWarning(e) {
			t.Errorf("Expected error, got warning: %v", e)
		}
	}
}

// Helper function strings.Contains() is defined in models_test.go
