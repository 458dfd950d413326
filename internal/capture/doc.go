// Package capture defines the domain types shared by the capture pipeline:
// camera angles, recorded segments, their container metadata, and the final
// assembled artifact.
//
// # Angles
//
// Every session records exactly three angles, always in the same order:
//
//	middle (1) → top (2) → bottom (3)
//
// # Segments
//
// A Segment is one raw recording attempt for a single angle. It is immutable
// once constructed: metadata is read once from the payload (ProbeSegment) or
// supplied by the recorder (NewSegment). A rejected segment is discarded and
// a retry always produces a new Segment with a new ID.
//
// # Artifacts
//
// An Artifact is the byte-level concatenation of the accepted segments in
// angle order. Only the assembler creates artifacts.
package capture
