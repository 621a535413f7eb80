// Timing measurements produced by the write pipeline and the scrubber.

package chunkfs

import (
	"fmt"
	"time"
)

// WriteMeasurements accumulates the time spent in each stage of the write
// pipeline for one open file. The file system returns them from CloseFile.
type WriteMeasurements struct {
	SaveTime  time.Duration // Time spent persisting chunks and spans
	ChunkTime time.Duration // Time spent splitting buffers into chunks
	HashTime  time.Duration // Time spent hashing chunk contents
}

// Add accumulates another set of measurements into the receiver.
func (m *WriteMeasurements) Add(other WriteMeasurements) {
	m.SaveTime += other.SaveTime
	m.ChunkTime += other.ChunkTime
	m.HashTime += other.HashTime
}

// String returns a pretty representation of the write measurements.
func (m WriteMeasurements) String() string {
	return fmt.Sprintf("save %s, chunk %s, hash %s", m.SaveTime, m.ChunkTime, m.HashTime)
}

// ScrubMeasurements describes one scrub pass: how many payload bytes were
// migrated to the target map, how long the pass ran, and how many bytes
// remain unmigrated in the CDC map.
type ScrubMeasurements struct {
	ProcessedData int           // Bytes migrated during the pass
	RunningTime   time.Duration // Wall time of the pass
	DataLeft      int           // Bytes still held inline in the CDC map
}

// String returns a pretty representation of the scrub measurements.
func (m ScrubMeasurements) String() string {
	return fmt.Sprintf("processed %d bytes in %s, %d bytes left", m.ProcessedData, m.RunningTime, m.DataLeft)
}
