// Package archive provides the object-storage client used to preserve sync
// history before age-based cleanup deletes it from the database.
//
// The Client interface wraps the Minio SDK so that the cleanup path can be
// unit tested against the mock in archive/mocks. Cleanup serializes the
// history rows it is about to purge into a single JSON object per run, named
// by the purge timestamp, and uploads it before issuing the delete.
//
// Archival is optional: when disabled in configuration the cleanup path
// skips the upload and purges directly.
package archive
