package rebrand

import (
	"strings"
	"unicode"

	"github.com/keithlinneman/ipa-rebrand/internal/pathutil"
)

// Flags are optional feature toggles for a run.
type Flags struct {
	// MediaEndpointRewrite routes the third-party song download endpoint
	// through the new backend.
	MediaEndpointRewrite bool
}

// Identity is the set of values that parameterise one rebrand run.
type Identity struct {
	DisplayName string
	BundleID    string
	EndpointURL string
	Mode        Mode
	Flags       Flags
}

// NewIdentity builds an Identity, dropping all whitespace from name since
// it becomes both a directory and an executable file name. bundleID and
// endpoint are kept verbatim and length-checked as given.
func NewIdentity(name, bundleID, endpoint string, mode Mode, flags Flags) Identity {
	return Identity{
		DisplayName: stripSpace(name),
		BundleID:    bundleID,
		EndpointURL: endpoint,
		Mode:        mode,
		Flags:       flags,
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Validate checks the identity against p without touching the filesystem.
// The length checks mirror the literals being replaced in the template,
// they are not a general format check.
func (id Identity) Validate(p TemplateProfile) error {
	var missing []string
	if stripSpace(id.DisplayName) == "" {
		missing = append(missing, "name")
	}
	if id.BundleID == "" {
		missing = append(missing, "bundle")
	}
	if id.EndpointURL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return &MissingConfigError{Fields: missing}
	}

	if !pathutil.IsPlainName(id.DisplayName) {
		return &InvalidDisplayNameError{Name: id.DisplayName}
	}
	if len(id.BundleID) != p.BundleIDLength {
		return &InvalidBundleIDError{Got: len(id.BundleID), Want: p.BundleIDLength}
	}
	if len(id.EndpointURL) != p.EndpointLength {
		return &InvalidEndpointError{Got: len(id.EndpointURL), Want: p.EndpointLength}
	}
	return nil
}

// OutputName is the file name of the rebranded archive.
func (id Identity) OutputName() string {
	return id.DisplayName + ".ipa"
}
