// Package pipeline runs one rebrand: validate the identity, fetch the
// template if it is not already on disk, optionally verify its checksum,
// expand it into a scratch workspace, rewrite it, collect the result and
// remove the workspace.
//
// A failure after the workspace exists leaves it in place so the partial
// tree can be inspected.
package pipeline
