package rebrand

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	testName     = "MyApp"
	testBundle   = "com.example.myapp.gdps1"           // 23
	testAltID    = "com.example.gdps.app1"             // 21
	testEndpoint = "https://host.example.com/api/xxxx" // 33
)

const testInfoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleDisplayName</key>
	<string>Geometry</string>
	<key>CFBundleExecutable</key>
	<string>GeometryJump</string>
	<key>CFBundleIdentifier</key>
	<string>com.robtopx.geometryjump</string>
	<key>CFBundleName</key>
	<string>GeometryJump</string>
	<key>CFBundleShortVersionString</key>
	<string>2.2</string>
</dict>
</plist>
`

func testIdentity(mode Mode) Identity {
	bundle := testBundle
	if mode == ModeAlternate {
		bundle = testAltID
	}
	return NewIdentity(testName, bundle, testEndpoint, mode, Flags{})
}

// writeTemplateTree lays out {root}/Payload/GeometryJump.app with the given
// executable and, when aux is non-nil, the auxiliary binary.
func writeTemplateTree(t *testing.T, p TemplateProfile, exe, aux []byte) string {
	t.Helper()
	root := t.TempDir()
	app := filepath.Join(root, "Payload", p.AppName+".app")
	if err := os.MkdirAll(app, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(app, "Info.plist"), []byte(testInfoPlist), 0o644)
	mustWrite(t, filepath.Join(app, p.AppName), exe, 0o755)
	if aux != nil {
		mustWrite(t, filepath.Join(app, p.AuxiliaryBinary), aux, 0o644)
	}
	return root
}

func mustWrite(t *testing.T, path string, data []byte, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
