// Implements the scrubber topology: a staging CDC map of data containers,
// a long-term target map, and the periodic pass that migrates chunks
// between them.

package chunkfs

import (
	"time"

	"github.com/Ycyken/chunkfs/db"
)

//===========================================================================
// Data containers
//===========================================================================

// Data is the container held by the CDC side of a scrubber topology: either
// an inline chunk payload, or a marker that the payload has been migrated
// to the target map and must be looked up there.
type Data struct {
	bytes  []byte
	target bool
}

// ChunkData wraps an inline chunk payload.
func ChunkData(bytes []byte) Data {
	return Data{bytes: bytes}
}

// TargetData marks a payload as migrated to the target map.
func TargetData() Data {
	return Data{target: true}
}

// IsTarget reports whether the payload has been migrated.
func (d Data) IsTarget() bool {
	return d.target
}

// Bytes returns the inline payload, or nil for a migrated entry.
func (d Data) Bytes() []byte {
	return d.bytes
}

//===========================================================================
// Scrubbers
//===========================================================================

// Scrub is a maintenance pass over a CDC map. For each entry still holding
// an inline payload, the pass moves the payload to the target map and
// replaces the CDC entry with a target marker. It is intended to be
// invoked periodically while the file system is idle; behavior under
// concurrent writes is unspecified.
type Scrub[H comparable] interface {
	Scrub(cdc db.IterableDatabase[H, Data], target db.Database[H, []byte]) (ScrubMeasurements, error)
}

// CopyScrubber migrates every inline chunk it encounters in a single pass.
type CopyScrubber[H comparable] struct{}

// Scrub walks the CDC map and copies inline payloads into the target map,
// replacing each migrated entry with a target marker. When a target insert
// fails the pass stops and reports the bytes that remain inline.
func (s *CopyScrubber[H]) Scrub(cdc db.IterableDatabase[H, Data], target db.Database[H, []byte]) (ScrubMeasurements, error) {
	started := time.Now()
	measurements := ScrubMeasurements{}

	cursor := cdc.Iterator()
	var failure error
	for cursor.Next() {
		pair := cursor.Pair()
		if pair.Value.IsTarget() {
			continue
		}

		if failure != nil {
			// Keep walking only to account for the data left behind.
			measurements.DataLeft += len(pair.Value.Bytes())
			continue
		}

		if err := target.TryInsert(pair.Key, pair.Value.Bytes()); err != nil {
			failure = err
			measurements.DataLeft += len(pair.Value.Bytes())
			continue
		}
		if err := cdc.Insert(pair.Key, TargetData()); err != nil {
			failure = err
			measurements.DataLeft += len(pair.Value.Bytes())
			continue
		}

		measurements.ProcessedData += len(pair.Value.Bytes())
	}
	if err := cursor.Error(); err != nil && failure == nil {
		failure = err
	}

	measurements.RunningTime = time.Since(started)
	logger.Info("scrub pass: %s", measurements)
	return measurements, failure
}

//===========================================================================
// Chunk Storage
//===========================================================================

// mapKind records which store currently owns a hash's payload.
type mapKind int

const (
	cdcKind mapKind = iota
	targetKind
)

// ChunkStorage pairs a producer-side CDC map with a long-term target map
// and dispatches reads to whichever store owns each payload. A scrubber
// migrates payloads between the two when invoked.
type ChunkStorage[H comparable] struct {
	cdcMap         db.IterableDatabase[H, Data]
	targetMap      db.Database[H, []byte]
	scrubber       Scrub[H]
	correspondence map[H]mapKind
}

// NewChunkStorage assembles a chunk storage from its collaborators.
func NewChunkStorage[H comparable](cdc db.IterableDatabase[H, Data], target db.Database[H, []byte], scrubber Scrub[H]) *ChunkStorage[H] {
	return &ChunkStorage[H]{
		cdcMap:         cdc,
		targetMap:      target,
		scrubber:       scrubber,
		correspondence: make(map[H]mapKind),
	}
}

// Insert stores an inline payload in the CDC map and records ownership.
func (s *ChunkStorage[H]) Insert(key H, payload []byte) error {
	if err := s.cdcMap.TryInsert(key, ChunkData(payload)); err != nil {
		return err
	}
	if _, ok := s.correspondence[key]; !ok {
		s.correspondence[key] = cdcKind
	}
	return nil
}

// Get returns the payload for a key from whichever store owns it.
func (s *ChunkStorage[H]) Get(key H) ([]byte, error) {
	kind := s.correspondence[key]
	if kind == targetKind {
		return s.targetMap.Get(key)
	}

	data, err := s.cdcMap.Get(key)
	if err != nil {
		return nil, err
	}
	if data.IsTarget() {
		// The scrubber moved it; repair the correspondence on the way out.
		s.correspondence[key] = targetKind
		return s.targetMap.Get(key)
	}
	return data.Bytes(), nil
}

// Scrub runs the configured scrubber once and updates the correspondence
// map to reflect the migrated entries.
func (s *ChunkStorage[H]) Scrub() (ScrubMeasurements, error) {
	measurements, err := s.scrubber.Scrub(s.cdcMap, s.targetMap)

	cursor := s.cdcMap.Iterator()
	for cursor.Next() {
		pair := cursor.Pair()
		if pair.Value.IsTarget() {
			s.correspondence[pair.Key] = targetKind
		}
	}

	return measurements, err
}
