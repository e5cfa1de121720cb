package deviceconfig

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

//go:embed schema/runtime-configuration.json
var runtimeConfigSchemaJSON string

var (
	schemaOnce     sync.Once
	runtimeSchema  *jsonschema.Schema
	runtimeSchemaE error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("runtime-configuration.json",
			strings.NewReader(runtimeConfigSchemaJSON)); err != nil {
			runtimeSchemaE = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		runtimeSchema, runtimeSchemaE = compiler.Compile("runtime-configuration.json")
	})
	return runtimeSchema, runtimeSchemaE
}

// ValidateShapeJSON checks a runtime configuration document against the
// transfer schema: known fields only, scalars 0-65535, booleans as booleans.
// Presence is not required here; see ValidateComplete.
func ValidateShapeJSON(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return NewValidationError(fmt.Sprintf("invalid JSON: %v", err))
	}

	if err := schema.Validate(doc); err != nil {
		return NewValidationError(fmt.Sprintf("schema validation failed: %v", err))
	}
	return nil
}

// DecodeShape validates data and decodes it into a transfer shape.
func DecodeShape(data []byte) (*runtimeconfig.Shape, error) {
	if err := ValidateShapeJSON(data); err != nil {
		return nil, err
	}
	var shape runtimeconfig.Shape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, NewParseError("failed to decode runtime configuration", err)
	}
	return &shape, nil
}

// ValidateComplete requires every field of the shape to be present.
func ValidateComplete(shape *runtimeconfig.Shape) error {
	missing := shape.Missing()
	if len(missing) == 0 {
		return nil
	}
	return NewValidationError(fmt.Sprintf("runtime configuration incomplete, missing: %s", strings.Join(missing, ", ")))
}

// ValidateRuntimeConfig reports configurations that are accepted by the
// reader but are probably not what the operator wants. All results are
// warnings; nothing here blocks a write.
func ValidateRuntimeConfig(rc *runtimeconfig.RuntimeConfiguration) []error {
	var warnings []error

	if sel, ok := rc.Selector(); ok && sel&^runtimeconfig.FlagMask != 0 {
		warnings = append(warnings, NewValidationError(
			fmt.Sprintf("warning: memorySelector has reserved bits set (0x%04X)", uint16(sel&^runtimeconfig.FlagMask)),
		))
	}

	if v, ok := rc.Length(runtimeconfig.TagsInField); ok && v == 0 {
		warnings = append(warnings, NewValidationError(
			"warning: tagsInField is 0 (no tag data will be reported)",
		))
	}

	count := rc.LengthOrZero(runtimeconfig.SelectionMaskCount)
	maxLen := rc.LengthOrZero(runtimeconfig.SelectionMaskMaxLength)
	if count > 0 && maxLen == 0 {
		warnings = append(warnings, NewValidationError(
			fmt.Sprintf("warning: %d selection masks configured with selectionMaskMaxLength 0", count),
		))
	}
	if count == 0 && maxLen > 0 {
		warnings = append(warnings, NewValidationError(
			"warning: selectionMaskMaxLength has no effect while selectionMaskCount is 0",
		))
	}

	return warnings
}

// FormatValidationErrors formats a slice of validation errors into a user-friendly message.
func FormatValidationErrors(errors []error) string {
	if len(errors) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(errors)))

	for i, err := range errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}

	return sb.String()
}

// IsWarning checks if a validation error is a warning (non-fatal).
// Warnings have error messages starting with "warning:".
func IsWarning(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return strings.HasPrefix(devErr.Message, "warning:")
	}
	return strings.Contains(err.Error(), "warning:")
}

// SeparateWarningsAndErrors separates validation errors into warnings and errors.
func SeparateWarningsAndErrors(errors []error) (warnings []error, criticalErrors []error) {
	for _, err := range errors {
		if IsWarning(err) {
			warnings = append(warnings, err)
		} else {
			criticalErrors = append(criticalErrors, err)
		}
	}
	return warnings, criticalErrors
}
