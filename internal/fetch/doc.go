// Package fetch streams a template archive from an https or s3 URL to a
// local file, reporting progress per chunk and aborting when no data
// arrives for a configurable idle period.
package fetch
