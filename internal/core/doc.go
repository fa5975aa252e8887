// Package core provides the domain models for incremental job-graph construction.
//
// # Design Principles
//
//  1. Path values form closed trees (Path, List, Map) so that flattening is total
//  2. Every traversal that feeds a digest or an emitted document is deterministic
//  3. Nothing in this package touches the filesystem
//
// # Core Types
//
// JobTemplate: inputs, outputs, resource options and a script body.
// Node: a path-bearing tree appearing in job inputs and outputs.
// Fingerprinter: anything exposing a stable content digest and a name.
package core
