package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// ValidatePackageVersion checks a registry record before it enters a catalog.
// Version strings are not required to be valid semver here; ordering degrades
// gracefully for them later.
func ValidatePackageVersion(p *PackageVersion) error {
	var ve ValidationError

	if strings.TrimSpace(p.Name) == "" {
		ve.add("name", "is required")
	}
	if strings.TrimSpace(p.Version) == "" {
		ve.add("vers", "is required")
	}
	for i, d := range p.Dependencies {
		if strings.TrimSpace(d.Name) == "" {
			ve.add(fmt.Sprintf("deps[%d].name", i), "is required")
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateBuildResult checks a build result before it is recorded.
func ValidateBuildResult(r *BuildResult) error {
	var ve ValidationError

	if _, err := ParseToolchain(r.Toolchain); err != nil {
		ve.add("toolchain", err.Error())
	}
	if strings.TrimSpace(r.CrateName) == "" {
		ve.add("crate_name", "is required")
	}
	if strings.TrimSpace(r.CrateVers) == "" {
		ve.add("crate_vers", "is required")
	}
	if !r.Outcome.IsValid() {
		ve.add("outcome", fmt.Sprintf("invalid value %q", r.Outcome))
	}
	if strings.TrimSpace(r.TaskID) == "" {
		ve.add("task_id", "is required")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
