package rebrand

import (
	"bytes"
	"encoding/base64"
	"testing"
)

// Apply

func TestPlanApply_ReplacesAllOccurrences(t *testing.T) {
	plan := Plan{sub("x", "abc", "Z")}
	out, counts := plan.Apply([]byte("abc-abc-abc"))
	if string(out) != "Z-Z-Z" {
		t.Fatalf("out = %q", out)
	}
	if counts[0] != 3 {
		t.Fatalf("count = %d, want 3", counts[0])
	}
}

func TestPlanApply_LengthChangesPreserveSurroundingBytes(t *testing.T) {
	prefix := []byte{0x00, 0xff, 0xfe, 0x80, 0x00}
	suffix := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x01}
	buf := append(append(append([]byte{}, prefix...), "LITERAL"...), suffix...)

	out, _ := Plan{sub("x", "LITERAL", "a much longer replacement")}.Apply(buf)

	if !bytes.HasPrefix(out, prefix) || !bytes.HasSuffix(out, suffix) {
		t.Fatalf("bytes outside the match changed: %x", out)
	}
	if len(out) != len(prefix)+len("a much longer replacement")+len(suffix) {
		t.Fatalf("len = %d", len(out))
	}
}

func TestPlanApply_DoesNotMutateInput(t *testing.T) {
	buf := []byte("keep com.robtopx.geometryjump keep")
	orig := bytes.Clone(buf)

	out, _ := Plan{sub("x", "com.robtopx.geometryjump", "y")}.Apply(buf)
	if !bytes.Equal(buf, orig) {
		t.Fatal("Apply mutated its input")
	}

	out[0] = 'K'
	if buf[0] != 'k' {
		t.Fatal("output aliases input")
	}
}

func TestPlanApply_NoMatchReturnsCopy(t *testing.T) {
	buf := []byte("nothing here")
	out, counts := Plan{sub("x", "absent", "y")}.Apply(buf)
	if !bytes.Equal(out, buf) || counts[0] != 0 {
		t.Fatalf("out = %q counts = %v", out, counts)
	}
	out[0] = 'N'
	if buf[0] != 'n' {
		t.Fatal("no-match output should not alias input")
	}
}

func TestPlanApply_LaterPassesSeeEarlierOutput(t *testing.T) {
	plan := Plan{sub("a", "one", "two"), sub("b", "two", "three")}
	out, counts := plan.Apply([]byte("one"))
	if string(out) != "three" {
		t.Fatalf("out = %q", out)
	}
	if counts[0] != 1 || counts[1] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestPlanApply_EmptySearchSkipped(t *testing.T) {
	out, counts := Plan{sub("x", "", "boom")}.Apply([]byte("abc"))
	if string(out) != "abc" || counts[0] != 0 {
		t.Fatalf("out = %q counts = %v", out, counts)
	}
}

func TestPlanTotals_FoldsByName(t *testing.T) {
	plan := Plan{sub("a", "1", "x"), sub("b", "2", "y"), sub("a", "3", "z")}
	got := plan.Totals([]int{1, 2, 4})
	if len(got) != 2 || got[0] != (NamedCount{"a", 5}) || got[1] != (NamedCount{"b", 2}) {
		t.Fatalf("Totals = %v", got)
	}
}

// plan builders

func TestMetadataPlan_Order(t *testing.T) {
	p := StandardProfile()
	plan := MetadataPlan(testIdentity(ModeStandard), p)

	want := []string{p.BundleID, p.AppName, p.DisplayLabel}
	if len(plan) != len(want) {
		t.Fatalf("len = %d", len(plan))
	}
	for i, w := range want {
		if string(plan[i].Search) != w {
			t.Errorf("plan[%d].Search = %q, want %q", i, plan[i].Search, w)
		}
		if i > 0 && string(plan[i].Replace) != testName {
			t.Errorf("plan[%d].Replace = %q", i, plan[i].Replace)
		}
	}
}

func TestMetadataPlan_AlternateLabel(t *testing.T) {
	plan := MetadataPlan(testIdentity(ModeAlternate), AlternateProfile())
	if string(plan[2].Search) != "iCreate Pro" {
		t.Fatalf("label = %q", plan[2].Search)
	}
	if string(plan[0].Search) != "com.camila314.icreate" {
		t.Fatalf("bundle = %q", plan[0].Search)
	}
}

func TestExecutablePlan_Endpoints(t *testing.T) {
	plan := ExecutablePlan(testIdentity(ModeStandard), StandardProfile())

	if string(plan[1].Search) != "https://www.boomlings.com/database" {
		t.Fatalf("endpoint search = %q", plan[1].Search)
	}
	if string(plan[1].Replace) != testEndpoint+"/" {
		t.Fatalf("endpoint replace = %q", plan[1].Replace)
	}

	wantEnc := base64.StdEncoding.EncodeToString([]byte(testEndpoint))
	var sawLegacy bool
	for _, s := range plan[2:] {
		if s.Name != "endpoint_base64" {
			t.Fatalf("unexpected substitution %q without media flag", s.Name)
		}
		if string(s.Replace) != wantEnc {
			t.Fatalf("base64 replace = %q", s.Replace)
		}
		if string(s.Search) == "aHR0cDovL3d3dy5ib29tbGluZ3MuY29tL2RhdGFiYXNl" {
			sawLegacy = true
		}
	}
	if !sawLegacy {
		t.Fatal("legacy base64 endpoint literal should be in the plan")
	}
}

func TestExecutablePlan_MediaFlag(t *testing.T) {
	id := testIdentity(ModeStandard)
	id.Flags.MediaEndpointRewrite = true
	plan := ExecutablePlan(id, StandardProfile())

	last := plan[len(plan)-1]
	if last.Name != "media_endpoint" {
		t.Fatalf("last = %q, want media_endpoint", last.Name)
	}
	if string(last.Replace) != testEndpoint+"///music/%i" {
		t.Fatalf("media replace = %q", last.Replace)
	}
	if len(last.Replace) != len(last.Search) {
		t.Fatalf("media replacement should keep the literal length: %d vs %d", len(last.Replace), len(last.Search))
	}
}

func TestAuxiliaryPlan(t *testing.T) {
	plan := AuxiliaryPlan(testIdentity(ModeAlternate), AlternateProfile())
	if len(plan) != 2 {
		t.Fatalf("len = %d", len(plan))
	}
	for _, s := range plan {
		if string(s.Replace) != testAltID {
			t.Fatalf("replace = %q", s.Replace)
		}
	}
}

func FuzzPlanApply(f *testing.F) {
	f.Add([]byte("xxcom.robtopx.geometryjumpyy"), "com.robtopx.geometryjump", "com.example.myapp.gdps1")
	f.Add([]byte{0, 1, 2, 3}, "\x01\x02", "")
	f.Add([]byte("aaaa"), "aa", "a")

	f.Fuzz(func(t *testing.T, buf []byte, search, replace string) {
		if search == "" {
			return
		}
		out, counts := Plan{sub("x", search, replace)}.Apply(buf)
		want := bytes.ReplaceAll(buf, []byte(search), []byte(replace))
		if !bytes.Equal(out, want) {
			t.Fatalf("Apply disagrees with bytes.ReplaceAll")
		}
		if counts[0] != bytes.Count(buf, []byte(search)) {
			t.Fatalf("count = %d", counts[0])
		}
	})
}
