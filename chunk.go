// Mechanisms for chunking data. Currently there are two mechanisms for
// splitting write buffers: fixed-size chunking and leap-based CDC.

package chunkfs

import "sync"

// Specifies the names of available chunking mechanisms
const (
	FixedSizeChunking = "fixed"
	LeapChunking      = "leap"
)

// Names of available chunking mechanisms for validation
var chunkingMethodNames = []string{FixedSizeChunking, LeapChunking}

//===========================================================================
// Chunking Structs and Interfaces
//===========================================================================

// Chunk is a window into a contiguous byte buffer. It stores no data of
// its own and is meaningful only with respect to the buffer that produced
// it.
type Chunk struct {
	Offset int // Byte offset of the chunk within the buffer
	Length int // Number of bytes in the chunk
}

// End returns the offset one past the last byte of the chunk.
func (c Chunk) End() int {
	return c.Offset + c.Length
}

// Slice returns the chunk's bytes within the buffer that produced it.
func (c Chunk) Slice(data []byte) []byte {
	return data[c.Offset:c.End()]
}

// Chunker splits a byte buffer into chunks whose ranges tile a prefix of
// the buffer. If the final bytes do not constitute a complete chunk by the
// chunker's rules they are not emitted; the caller retains them and
// prepends them to the next write's buffer. Chunkers may hold internal
// parameters but each ChunkData call operates on exactly the bytes given.
type Chunker interface {
	// ChunkData appends the chunks found in data to the chunks slice and
	// returns it. The slice is pre-allocated by the caller with capacity
	// hinted by EstimateChunkCount.
	ChunkData(data []byte, chunks []Chunk) []Chunk

	// EstimateChunkCount cheaply estimates how many chunks ChunkData will
	// produce for the data. It is used for allocation only; a low estimate
	// causes reallocation, never wrong output.
	EstimateChunkCount(data []byte) int
}

// NewChunker uses a storage configuration to initialize the appropriate
// chunking mechanism.
func NewChunker(config *StorageConfig) (Chunker, error) {
	switch config.Chunking {
	case FixedSizeChunking:
		return NewFSChunker(config.ChunkSize), nil
	case LeapChunking:
		return NewLeapChunker(config.MinChunkSize, config.MaxChunkSize), nil
	default:
		return nil, ImproperlyConfigured("unknown chunking method: '%s'", config.Chunking)
	}
}

//===========================================================================
// ChunkerRef
//===========================================================================

// ChunkerRef wraps a chunker in a mutex so the same chunker may be shared
// by several file systems. Each ChunkData call holds the lock for the
// duration of the call.
type ChunkerRef struct {
	mu      sync.Mutex
	chunker Chunker
}

// NewChunkerRef wraps a chunker for shared use.
func NewChunkerRef(chunker Chunker) *ChunkerRef {
	return &ChunkerRef{chunker: chunker}
}

// ChunkData allocates an output slice sized by the chunker's estimate and
// runs the chunker over the data under the lock.
func (r *ChunkerRef) ChunkData(data []byte) []Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunks := make([]Chunk, 0, r.chunker.EstimateChunkCount(data))
	return r.chunker.ChunkData(data, chunks)
}

//===========================================================================
// Fixed Size Chunking
//===========================================================================

// FSChunker splits data into chunks of exactly chunkSize bytes. A trailing
// remainder shorter than chunkSize is never emitted; it stays with the
// caller until the end of the write sequence, when the file system flushes
// it as one short final chunk.
type FSChunker struct {
	chunkSize int
}

// NewFSChunker creates a fixed-size chunker with the given chunk size.
func NewFSChunker(chunkSize int) *FSChunker {
	return &FSChunker{chunkSize: chunkSize}
}

// ChunkData appends one chunk per complete chunkSize window in data.
func (c *FSChunker) ChunkData(data []byte, chunks []Chunk) []Chunk {
	for offset := 0; offset+c.chunkSize <= len(data); offset += c.chunkSize {
		chunks = append(chunks, Chunk{Offset: offset, Length: c.chunkSize})
	}
	return chunks
}

// EstimateChunkCount returns the number of whole windows plus one.
func (c *FSChunker) EstimateChunkCount(data []byte) int {
	return len(data)/c.chunkSize + 1
}

//===========================================================================
// Leap-Based CDC Chunking
//===========================================================================

// leapGear is the table of per-byte random values mixed into the rolling
// judgement hash. It is filled deterministically at init so chunk
// boundaries are stable across runs and architectures.
var leapGear [256]uint64

func init() {
	// splitmix64 over a fixed seed
	state := uint64(0x9747b28c9747b28c)
	for i := range leapGear {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		leapGear[i] = z ^ (z >> 31)
	}
}

// LeapChunker implements leap-based content-defined chunking. A rolling
// hash judges every candidate position past the minimum chunk size; the
// shift in the hash update ages bytes out after 64 positions, so the
// judgement effectively looks at a 64-byte sliding window. Positions that
// fail the judgement let the window leap forward, and a chunk is cut at
// the first position that passes or at the maximum chunk size. Local
// insertions shift only nearby boundaries.
type LeapChunker struct {
	minSize int
	maxSize int
	mask    uint64
}

// NewLeapChunker creates a leap-based chunker with the given minimum and
// maximum chunk sizes. The judgement mask has floor(log2(2*minSize)) bits
// (12 bits for a 2048-byte minimum), so past the minimum a judgement passes
// about once every 2*minSize positions; maxSize only bounds the cut and
// does not affect the mask.
func NewLeapChunker(minSize, maxSize int) *LeapChunker {
	bits := 0
	for target := minSize * 2; target > 1; target >>= 1 {
		bits++
	}
	return &LeapChunker{
		minSize: minSize,
		maxSize: maxSize,
		mask:    (1 << uint(bits)) - 1,
	}
}

// ChunkData appends every complete chunk found in data. A trailing region
// whose boundary was not reached before the data ran out is left for the
// caller to carry into the next write.
func (c *LeapChunker) ChunkData(data []byte, chunks []Chunk) []Chunk {
	start := 0
	for {
		end, complete := c.nextBoundary(data, start)
		if !complete {
			return chunks
		}
		chunks = append(chunks, Chunk{Offset: start, Length: end - start})
		start = end
	}
}

// nextBoundary finds the cut point for the chunk beginning at start. The
// second return is false when the data ends before a boundary decision
// could be made, in which case the region is not a complete chunk.
func (c *LeapChunker) nextBoundary(data []byte, start int) (int, bool) {
	// The maximum-size cut applies even when no judgement ever passes.
	if start+c.maxSize <= len(data) {
		data = data[:start+c.maxSize]
	} else {
		// Not enough bytes left to guarantee a boundary: a judgement could
		// still pass inside the remaining window, but a partial region must
		// never be emitted, so the caller keeps it as the tail.
		return 0, false
	}

	var rolling uint64
	for i := start; i < len(data); i++ {
		rolling = (rolling << 1) + leapGear[data[i]]
		if i-start+1 < c.minSize {
			continue
		}
		if rolling&c.mask == 0 {
			return i + 1, true
		}
	}
	return len(data), true
}

// EstimateChunkCount divides the data length by the minimum chunk size.
func (c *LeapChunker) EstimateChunkCount(data []byte) int {
	return len(data)/c.minSize + 1
}
