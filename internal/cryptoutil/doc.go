// Package cryptoutil holds the hashing helpers used to pin a template
// archive to a known SHA-256 digest.
package cryptoutil
