// Package chunkfs implements a content-defined-chunking deduplicating
// file store. It presents a named-file abstraction on top of a
// chunk-addressed blob store: writes are split into chunks by a pluggable
// Chunker, hashed by a pluggable Hasher, and stored once per distinct hash
// in a Database. Repeated content across files is stored exactly once, and
// files are recovered by replaying their ordered list of chunk hashes.
package chunkfs

// Byte size multiples used throughout the package.
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// SegSize is the block granularity of FileSystem.ReadFromFile. A single
// block read returns at most SegSize bytes of file content.
const SegSize = MB
