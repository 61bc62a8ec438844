// Package object defines the in-memory layouts of heap objects.
//
// Every object is a tagged record: a one-word type tag followed by the
// variant's payload, rounded up to a whole number of words.
//
//	Integer    | tag | value |                 16 bytes
//	Forward    | tag | new address |           16 bytes
//	PadSingle  | tag |                          8 bytes
//	PadMulti   | tag | size | ... dead ... |   size bytes
//	Pair       | tag | car | cdr |           24 bytes
//
// Forward, PadSingle and PadMulti are written by the collector through the
// format adapter; Integer and Pair are the user variants. Dispatch is always
// by tag; an unknown tag means the heap is corrupt.
package object
