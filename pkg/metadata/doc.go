// Package metadata is the pure document model consumed by pkg/executor's
// MetadataMutation command: given a decoded GlobalRegistry or
// ProjectMetadata and an Operation, it computes the next document. It
// never touches storage itself — the executor reads the current document
// via commit.Engine.Get, calls ApplyToRegistry/ApplyToProjectMetadata, and
// pushes the result via commit.Engine.Transform, so a concurrent metadata
// conflict surfaces as an ordinary ChangeConflict retry rather than a
// bespoke lock.
//
//	executor                    metadata                      commit.Engine
//	   | MetadataMutation(op)        |                               |
//	   |--- Transform(fn) --------------------------------------->   |
//	   |                             |      fn(head, content) -->    |
//	   |<----------------------------| ApplyTo{Registry,ProjectMetadata} |
//	   |--- new document bytes ------------------------------------->|
package metadata
