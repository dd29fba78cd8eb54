package version_test

import (
	"strings"
	"testing"

	v "github.com/keithlinneman/ipa-rebrand/internal/version"
)

func TestVCSDirtyExplicitWins(t *testing.T) {
	t.Cleanup(func() { v.VCSDirty = nil })

	trueVal := true
	v.VCSDirty = &trueVal
	info := v.Get()
	if info.VCSDirty == nil || *info.VCSDirty != true {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	v.VCSDirty = &falseVal
	info = v.Get()
	if info.VCSDirty == nil || *info.VCSDirty != false {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestGet_AppName(t *testing.T) {
	if got := v.Get().AppName; got != v.AppName {
		t.Fatalf("AppName = %q, want %q", got, v.AppName)
	}
}

func TestInfo_String(t *testing.T) {
	dirty := true
	info := v.Info{AppName: "ipa-rebrand", Version: "1.2.3", Commit: "abc123", GoVersion: "go1.24", VCSDirty: &dirty}
	got := info.String()
	for _, want := range []string{"ipa-rebrand 1.2.3", "commit=abc123", "go=go1.24", "dirty"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestInfo_StringClean(t *testing.T) {
	info := v.Info{AppName: "ipa-rebrand", Version: "dev", Commit: "none"}
	if got := info.String(); strings.Contains(got, "dirty") {
		t.Fatalf("String() = %q, should not mention dirty", got)
	}
}
