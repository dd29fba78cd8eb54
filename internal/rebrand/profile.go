package rebrand

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/ipa-rebrand/internal/pathutil"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

// Mode selects which template archive a run starts from.
type Mode int

const (
	ModeStandard Mode = iota
	// ModeAlternate uses the iCreate Pro template, which ships an extra
	// loader binary that embeds its own bundle identifier.
	ModeAlternate
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeAlternate:
		return "alternate"
	default:
		return "unknown"
	}
}

// TemplateProfile carries every constant that depends on the template in use.
type TemplateProfile struct {
	Mode Mode `yaml:"-"`

	// ArchiveName is the local file name of the template archive.
	ArchiveName string `yaml:"archive_name"`
	ArchiveURL  string `yaml:"archive_url"`

	BundleID     string `yaml:"bundle_id"`
	AppName      string `yaml:"app_name"`
	DisplayLabel string `yaml:"display_label"`

	BundleIDLength int `yaml:"bundle_id_length"`
	EndpointLength int `yaml:"endpoint_length"`

	// DefaultEndpoint is replaced by the new endpoint plus a trailing slash.
	DefaultEndpoint string `yaml:"default_endpoint"`
	// EncodedEndpoints are matched in their base64 form.
	EncodedEndpoints []string `yaml:"encoded_endpoints"`
	MediaEndpoint    string   `yaml:"media_endpoint"`

	// AuxiliaryBinary is only set for ModeAlternate.
	AuxiliaryBinary   string `yaml:"auxiliary_binary"`
	AuxiliaryConstant string `yaml:"auxiliary_constant"`
}

const (
	defaultEndpoint = "https://www.boomlings.com/database"
	// the executable stores the legacy http form base64 encoded
	legacyEndpoint = "http://www.boomlings.com/database"
	mediaEndpoint  = "https://www.newgrounds.com/audio/download/%i"
)

// StandardProfile is the stock Geometry Dash template.
func StandardProfile() TemplateProfile {
	return TemplateProfile{
		Mode:             ModeStandard,
		ArchiveName:      "base.ipa",
		ArchiveURL:       "https://us-east-1.tixte.net/uploads/files.141412.xyz/base.ipa",
		BundleID:         "com.robtopx.geometryjump",
		AppName:          "GeometryJump",
		DisplayLabel:     "Geometry",
		BundleIDLength:   23,
		EndpointLength:   33,
		DefaultEndpoint:  defaultEndpoint,
		EncodedEndpoints: []string{legacyEndpoint, defaultEndpoint},
		MediaEndpoint:    mediaEndpoint,
	}
}

// AlternateProfile is the iCreate Pro template.
func AlternateProfile() TemplateProfile {
	p := StandardProfile()
	p.Mode = ModeAlternate
	p.ArchiveName = "icreate.ipa"
	p.ArchiveURL = "https://objectstorage.us-phoenix-1.oraclecloud.com/n/axe9yayefpvx/b/iCreateVersions/o/iCreatePro_6.7.1.ipa"
	p.BundleID = "com.camila314.icreate"
	p.DisplayLabel = "iCreate Pro"
	p.BundleIDLength = 21
	p.AuxiliaryBinary = "hook.dylib"
	p.AuxiliaryConstant = "com.camila314.icreate"
	// copy so callers mutating one profile never alias the other
	p.EncodedEndpoints = append([]string(nil), p.EncodedEndpoints...)
	return p
}

// ProfileFor returns the built-in profile for m.
func ProfileFor(m Mode) TemplateProfile {
	if m == ModeAlternate {
		return AlternateProfile()
	}
	return StandardProfile()
}

// LoadProfileOverrides reads a YAML file and overlays every field it sets on
// top of base. Mode is never taken from the file.
func LoadProfileOverrides(path string, base TemplateProfile) (TemplateProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, xerrors.Wrapf(err, "read profile %s", path)
	}

	out := base
	out.EncodedEndpoints = append([]string(nil), base.EncodedEndpoints...)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, xerrors.Wrapf(err, "parse profile %s", path)
	}
	out.Mode = base.Mode
	if err := out.Validate(); err != nil {
		return base, xerrors.Wrapf(err, "profile %s", path)
	}
	return out, nil
}

// Validate checks that the profile can drive a rewrite.
func (p TemplateProfile) Validate() error {
	var errs []error
	if !pathutil.IsPlainName(p.ArchiveName) {
		errs = append(errs, xerrors.Newf("archive_name %q must be a plain file name", p.ArchiveName))
	}
	if !pathutil.IsPlainName(p.AppName) {
		errs = append(errs, xerrors.Newf("app_name %q must be a plain file name", p.AppName))
	}
	if p.BundleID == "" {
		errs = append(errs, xerrors.New("bundle_id is required"))
	}
	if p.DisplayLabel == "" {
		errs = append(errs, xerrors.New("display_label is required"))
	}
	if p.BundleIDLength <= 0 || p.EndpointLength <= 0 {
		errs = append(errs, xerrors.Newf("bundle_id_length (%d) and endpoint_length (%d) must be positive",
			p.BundleIDLength, p.EndpointLength))
	}
	if p.DefaultEndpoint == "" {
		errs = append(errs, xerrors.New("default_endpoint is required"))
	}
	if p.Mode == ModeAlternate && !pathutil.IsPlainName(p.AuxiliaryBinary) {
		errs = append(errs, xerrors.Newf("auxiliary_binary %q must be a plain file name", p.AuxiliaryBinary))
	}
	if len(errs) > 0 {
		return xerrors.Join(errs...)
	}
	return nil
}
