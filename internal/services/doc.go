// Package services defines shared error classification used across the
// ingestion pipeline components.
//
// Key responsibilities:
//   - Structured error markers (validation, external tool, not found, ...)
//     that callers can test with errors.Is regardless of which pipeline
//     component produced the failure.
//   - The Wrap helper that stamps component and operation context onto an
//     error while preserving the marker.
//
// Use these helpers when wiring new pipeline logic so failure handling stays
// uniform from the probe all the way to the reconciler.
package services
