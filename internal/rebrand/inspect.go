package rebrand

import (
	"os"
	"path/filepath"

	"howett.net/plist"

	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

// BundleInfo is the subset of Info.plist reported after a rewrite.
type BundleInfo struct {
	Identifier  string `plist:"CFBundleIdentifier"`
	Executable  string `plist:"CFBundleExecutable"`
	Name        string `plist:"CFBundleName"`
	DisplayName string `plist:"CFBundleDisplayName"`
	Version     string `plist:"CFBundleShortVersionString"`
}

// InspectBundle decodes Info.plist in appDir. It is read-only and used for
// reporting; the rewrite never depends on the file being well formed.
func InspectBundle(appDir string) (BundleInfo, error) {
	var info BundleInfo
	path := filepath.Join(appDir, infoPlist)
	data, err := os.ReadFile(path)
	if err != nil {
		return info, xerrors.Wrapf(err, "read %s", path)
	}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return info, xerrors.Wrapf(err, "decode %s", path)
	}
	return info, nil
}
