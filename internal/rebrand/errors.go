package rebrand

import (
	"fmt"
	"strings"
)

// MissingConfigError reports identity fields that were not supplied.
type MissingConfigError struct {
	Fields []string
}

func (e *MissingConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Fields, ", ")
}

// InvalidDisplayNameError reports a display name that cannot be used as a
// file name inside the bundle.
type InvalidDisplayNameError struct {
	Name string
}

func (e *InvalidDisplayNameError) Error() string {
	return fmt.Sprintf("invalid display name %q: must be a single path component", e.Name)
}

// InvalidBundleIDError reports a bundle identifier of the wrong length for
// the selected template.
type InvalidBundleIDError struct {
	Got, Want int
}

func (e *InvalidBundleIDError) Error() string {
	return fmt.Sprintf("invalid bundle ID length: expected %d, got %d", e.Want, e.Got)
}

// InvalidEndpointError reports an endpoint URL of the wrong length.
type InvalidEndpointError struct {
	Got, Want int
}

func (e *InvalidEndpointError) Error() string {
	return fmt.Sprintf("invalid URL length: expected %d characters, got %d", e.Want, e.Got)
}

// StructuralRenameError means the extracted tree does not have the layout
// the template profile expects.
type StructuralRenameError struct {
	Path string
	Err  error
}

func (e *StructuralRenameError) Error() string {
	return fmt.Sprintf("template layout mismatch at %s: %v", e.Path, e.Err)
}

func (e *StructuralRenameError) Unwrap() error { return e.Err }

// AuxiliaryBinaryMissingError means the alternate template is missing its
// loader binary.
type AuxiliaryBinaryMissingError struct {
	Path string
	Err  error
}

func (e *AuxiliaryBinaryMissingError) Error() string {
	return fmt.Sprintf("auxiliary binary missing at %s: %v", e.Path, e.Err)
}

func (e *AuxiliaryBinaryMissingError) Unwrap() error { return e.Err }
