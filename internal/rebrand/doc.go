// Package rebrand rewrites an extracted template .ipa so it carries a new
// identity: display name, bundle identifier and backend endpoint.
//
// All mode-dependent constants live in a TemplateProfile chosen once at
// startup. Patching is plain literal byte substitution over whole files;
// executables are never parsed, re-signed or validated.
package rebrand
