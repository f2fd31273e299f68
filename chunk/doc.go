// Package chunk defines how incremental outputs of a streaming run combine.
//
// Concat is associative and order preserving, so folding the chunks of a
// stream reproduces the value a single invoke would have returned:
//
//	out, err := chunk.Fold("Hel", "lo", " world") // "Hello world"
//
// Structured chunks (map[string]any) are deep merged: nested maps merge
// recursively, text leaves append, lists append, and other scalar leaves
// are overwritten by the later chunk. Lists of maps that carry an integer
// "index" field (tool call deltas) merge element-wise by that index.
// Identity fields ("id", "type", "index") are never appended; a later
// non-empty value replaces the earlier one.
//
// Types that need a different rule implement Concatenable.
package chunk
