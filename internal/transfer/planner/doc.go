// Package planner splits objects into parts.
//
// PlanRanges divides a known object size into a requested number of
// contiguous byte ranges for ranged downloads. SizeChunks derives an upload
// part size that grows with the square root of the source size, so part count
// stays low for huge files while every part respects the store's minimum.
//
// Both functions are pure and deterministic. A zero-byte object is planned
// as exactly one zero-length part.
package planner
