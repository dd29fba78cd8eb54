package rebrand

import (
	"bytes"
	"encoding/base64"
)

// Substitution replaces every occurrence of Search with Replace.
type Substitution struct {
	Name    string
	Search  []byte
	Replace []byte
}

// Plan is an ordered list of substitutions. Each one is a separate pass
// over the whole buffer, so a later entry sees the output of earlier ones.
type Plan []Substitution

func sub(name, search, replace string) Substitution {
	return Substitution{Name: name, Search: []byte(search), Replace: []byte(replace)}
}

// Apply runs every substitution over buf and returns the result along with
// the number of matches per substitution, in plan order. buf is not modified.
func (p Plan) Apply(buf []byte) ([]byte, []int) {
	counts := make([]int, len(p))
	out := buf
	for i, s := range p {
		if len(s.Search) == 0 {
			continue
		}
		n := bytes.Count(out, s.Search)
		counts[i] = n
		if n == 0 {
			continue
		}
		out = replaceAll(out, s.Search, s.Replace, n)
	}
	if sameSlice(out, buf) {
		// always hand back a buffer the caller owns
		out = bytes.Clone(buf)
	}
	return out, counts
}

// replaceAll is a single left-to-right scan that copies the bytes between
// matches untouched, so nothing outside a match can shift or be lost.
func replaceAll(buf, search, replace []byte, n int) []byte {
	out := make([]byte, 0, len(buf)+n*(len(replace)-len(search)))
	for {
		i := bytes.Index(buf, search)
		if i < 0 {
			break
		}
		out = append(out, buf[:i]...)
		out = append(out, replace...)
		buf = buf[i+len(search):]
	}
	return append(out, buf...)
}

// NamedCount is the number of matches for one substitution name.
type NamedCount struct {
	Name  string
	Count int
}

// Totals folds the counts returned by Apply by substitution name, keeping
// first-seen order.
func (p Plan) Totals(counts []int) []NamedCount {
	out := make([]NamedCount, 0, len(p))
	idx := make(map[string]int, len(p))
	for i, s := range p {
		if i >= len(counts) {
			break
		}
		j, ok := idx[s.Name]
		if !ok {
			j = len(out)
			idx[s.Name] = j
			out = append(out, NamedCount{Name: s.Name})
		}
		out[j].Count += counts[i]
	}
	return out
}

func sameSlice(a, b []byte) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

// MetadataPlan rewrites Info.plist text: bundle id, app name, then the
// display label.
func MetadataPlan(id Identity, p TemplateProfile) Plan {
	return Plan{
		sub("bundle_id", p.BundleID, id.BundleID),
		sub("app_name", p.AppName, id.DisplayName),
		sub("display_label", p.DisplayLabel, id.DisplayName),
	}
}

// ExecutablePlan rewrites the main executable. The plaintext endpoint and
// each base64 endpoint are independent passes; their alphabets never
// overlap for these literals so order between them does not matter, but
// they are kept separate rather than combined into one matcher.
func ExecutablePlan(id Identity, p TemplateProfile) Plan {
	endpoint := id.EndpointURL + "/"
	encoded := base64.StdEncoding.EncodeToString([]byte(id.EndpointURL))

	plan := Plan{
		sub("bundle_id", p.BundleID, id.BundleID),
		sub("endpoint", p.DefaultEndpoint, endpoint),
	}
	for _, e := range p.EncodedEndpoints {
		plan = append(plan, sub("endpoint_base64", base64.StdEncoding.EncodeToString([]byte(e)), encoded))
	}
	if id.Flags.MediaEndpointRewrite && p.MediaEndpoint != "" {
		// same length as the stock literal for a 33 char endpoint
		plan = append(plan, sub("media_endpoint", p.MediaEndpoint, endpoint+"//music/%i"))
	}
	return plan
}

// AuxiliaryPlan rewrites the alternate template's loader binary.
func AuxiliaryPlan(id Identity, p TemplateProfile) Plan {
	return Plan{
		sub("bundle_id", p.BundleID, id.BundleID),
		sub("auxiliary_constant", p.AuxiliaryConstant, id.BundleID),
	}
}
