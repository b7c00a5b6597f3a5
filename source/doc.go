// Package source provides built-in snapshot reader implementations.
//
// Snapshot readers load the numbered outputs of one simulation dataset.
// The package includes:
//
//   - Directory: Readable text dumps on disk, optionally zstd-compressed
//   - Static: In-memory profiles
//
// Custom readers can be implemented by satisfying the types.SnapshotReader interface.
package source
