// Implements the file system façade that orchestrates the chunker, the
// hasher, and the chunk database behind a named-file API.

package chunkfs

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ycyken/chunkfs/db"
)

// Base is the chunk database type consumed by the file system: hashes to
// raw chunk payloads.
type Base = db.Database[Hash, []byte]

//===========================================================================
// FileSystem
//===========================================================================

// openFile holds the per-open-file state of the write pipeline: the tail
// of the previous write that the chunker declined to emit as a complete
// chunk, and the timing measurements accumulated so far.
type openFile struct {
	tail         []byte
	measurements WriteMeasurements
}

// FileSystem presents a named-file abstraction on top of a chunk database.
// Writes stream through the chunker and hasher into the database; reads
// replay a file's hash list and concatenate the payloads. The file system
// is single-threaded by contract: one logical writer at a time.
type FileSystem struct {
	chunker *ChunkerRef
	hasher  Hasher
	base    Base
	files   *FileLayer
	open    map[uuid.UUID]*openFile
}

// NewFileSystem creates a CDC file system from any chunker, hasher, and
// database trio.
func NewFileSystem(chunker Chunker, hasher Hasher, base Base) *FileSystem {
	return &FileSystem{
		chunker: NewChunkerRef(chunker),
		hasher:  hasher,
		base:    base,
		files:   NewFileLayer(),
		open:    make(map[uuid.UUID]*openFile),
	}
}

// FromConfig creates a file system whose chunker, hasher, and database are
// all selected by the configuration.
func FromConfig(conf *Config) (*FileSystem, error) {
	chunker, err := NewChunker(conf.Storage)
	if err != nil {
		return nil, err
	}

	hasher, err := CreateHasher(conf.Storage.Hashing)
	if err != nil {
		return nil, err
	}

	base, err := OpenDatabase(conf.Database)
	if err != nil {
		return nil, err
	}

	return NewFileSystem(chunker, hasher, base), nil
}

// OpenDatabase uses a database configuration to open the appropriate
// chunk database driver.
func OpenDatabase(conf *DatabaseConfig) (Base, error) {
	switch conf.Driver {
	case db.MemoryDriver:
		return db.NewMapDatabase[Hash, []byte](), nil
	case db.DiskDriver:
		if isBlockDevice(conf.Path) {
			return db.OpenBlockDevice[Hash](conf.Path)
		}
		return db.NewDiskDatabase[Hash](conf.Path, conf.Size)
	case db.LevelDBDriver:
		return db.OpenLevelDB[Hash](conf.Path, HashKeyCodec)
	case db.BoltDBDriver:
		return db.OpenBoltDB[Hash](conf.Path, HashKeyCodec)
	default:
		return nil, ImproperlyConfigured("unknown database driver: '%s'", conf.Driver)
	}
}

//===========================================================================
// Builder
//===========================================================================

// Builder assembles a file system from its three collaborators.
type Builder struct {
	chunker Chunker
	hasher  Hasher
	base    Base
}

// NewBuilder creates an empty file system builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithChunker sets the chunker on the builder.
func (b *Builder) WithChunker(chunker Chunker) *Builder {
	b.chunker = chunker
	return b
}

// WithHasher sets the hasher on the builder.
func (b *Builder) WithHasher(hasher Hasher) *Builder {
	b.hasher = hasher
	return b
}

// WithBase sets the chunk database on the builder.
func (b *Builder) WithBase(base Base) *Builder {
	b.base = base
	return b
}

// Build validates the builder and creates the file system.
func (b *Builder) Build() (*FileSystem, error) {
	if b.chunker == nil {
		return nil, ImproperlyConfigured("a chunker is required")
	}
	if b.hasher == nil {
		return nil, ImproperlyConfigured("a hasher is required")
	}
	if b.base == nil {
		return nil, ImproperlyConfigured("a chunk database is required")
	}
	return NewFileSystem(b.chunker, b.hasher, b.base), nil
}

//===========================================================================
// File lifecycle
//===========================================================================

// CreateFile creates a new empty file and returns a handle at offset 0.
// It fails with ErrAlreadyExists when the name is already present.
func (fs *FileSystem) CreateFile(name string) (*FileHandle, error) {
	handle, err := fs.files.Create(name)
	if err != nil {
		return nil, err
	}

	fs.open[handle.id] = &openFile{}
	logger.Debug("created file '%s'", name)
	return handle, nil
}

// OpenFile opens an existing file and returns a handle at offset 0. It
// fails with ErrNotFound when the name is absent.
func (fs *FileSystem) OpenFile(name string) (*FileHandle, error) {
	handle, err := fs.files.Open(name)
	if err != nil {
		return nil, err
	}

	fs.open[handle.id] = &openFile{}
	return handle, nil
}

// state returns the per-handle pipeline state, or an error if the handle
// has been closed or never opened on this file system.
func (fs *FileSystem) state(handle *FileHandle) (*openFile, error) {
	state, ok := fs.open[handle.id]
	if !ok {
		return nil, Errorf("handle for '%s' is not open", ErrNotFound, handle.fileName)
	}
	return state, nil
}

//===========================================================================
// Write pipeline
//===========================================================================

// WriteToFile appends bytes to the file behind the handle. The tail of the
// previous write is prepended to the buffer, the chunker splits it, each
// chunk is hashed and try-inserted into the database, and the resulting
// spans are appended to the file. The suffix not covered by any emitted
// chunk becomes the new tail.
//
// A failed write leaves any chunks already inserted in the database, which
// is dedup-safe; callers must treat a failed write as requiring the file
// to be recreated.
func (fs *FileSystem) WriteToFile(handle *FileHandle, data []byte) error {
	state, err := fs.state(handle)
	if err != nil {
		return err
	}

	buf := data
	if len(state.tail) > 0 {
		buf = make([]byte, 0, len(state.tail)+len(data))
		buf = append(buf, state.tail...)
		buf = append(buf, data...)
	}

	start := time.Now()
	chunks := fs.chunker.ChunkData(buf)
	state.measurements.ChunkTime += time.Since(start)

	spans := make([]Span, 0, len(chunks))
	pairs := make([]db.Pair[Hash, []byte], 0, len(chunks))
	for _, chunk := range chunks {
		// Copy the payload out of the write buffer: the caller owns data
		// and may reuse it after this call returns.
		payload := make([]byte, chunk.Length)
		copy(payload, chunk.Slice(buf))

		start = time.Now()
		sum := fs.hasher.Hash(payload)
		state.measurements.HashTime += time.Since(start)

		spans = append(spans, Span{Hash: sum, Length: chunk.Length})
		pairs = append(pairs, db.Pair[Hash, []byte]{Key: sum, Value: payload})
	}

	start = time.Now()
	if err := fs.base.InsertMulti(pairs); err != nil {
		return wrapStorageError("could not save chunks", err)
	}
	if err := fs.files.Write(handle, spans); err != nil {
		return err
	}
	state.measurements.SaveTime += time.Since(start)

	covered := 0
	if len(chunks) > 0 {
		covered = chunks[len(chunks)-1].End()
	}
	state.tail = append([]byte(nil), buf[covered:]...)

	logger.Debug("wrote %d bytes to '%s' as %d chunks (%d byte tail)",
		len(data), handle.fileName, len(chunks), len(state.tail))
	return nil
}

// CloseFile flushes any residual tail as one final short chunk, destroys
// the handle, and returns the measurements accumulated over the handle's
// write sequence. The handle is invalidated: further writes or block reads
// through it fail.
func (fs *FileSystem) CloseFile(handle *FileHandle) (WriteMeasurements, error) {
	state, err := fs.state(handle)
	if err != nil {
		return WriteMeasurements{}, err
	}

	if len(state.tail) > 0 {
		start := time.Now()
		sum := fs.hasher.Hash(state.tail)
		state.measurements.HashTime += time.Since(start)

		start = time.Now()
		if err := fs.base.TryInsert(sum, state.tail); err != nil {
			return WriteMeasurements{}, wrapStorageError("could not save final chunk", err)
		}
		if err := fs.files.Write(handle, []Span{{Hash: sum, Length: len(state.tail)}}); err != nil {
			return WriteMeasurements{}, err
		}
		state.measurements.SaveTime += time.Since(start)
		state.tail = nil
	}

	measurements := state.measurements
	delete(fs.open, handle.id)

	logger.Debug("closed '%s' after %d bytes (%s)", handle.fileName, handle.offset, measurements)
	return measurements, nil
}

//===========================================================================
// Read pipeline
//===========================================================================

// ReadFileComplete returns the entire contents of the file behind the
// handle. The handle is not modified.
func (fs *FileSystem) ReadFileComplete(handle *FileHandle) ([]byte, error) {
	hashes, err := fs.files.ReadComplete(handle)
	if err != nil {
		return nil, err
	}
	return fs.fetch(hashes)
}

// ReadFromFile returns the next block of at most SegSize bytes from the
// handle's position and advances it. Near the end of the file it returns
// fewer bytes; at the end it returns an empty buffer.
func (fs *FileSystem) ReadFromFile(handle *FileHandle) ([]byte, error) {
	if _, err := fs.state(handle); err != nil {
		return nil, err
	}

	hashes, err := fs.files.Read(handle)
	if err != nil {
		return nil, err
	}
	return fs.fetch(hashes)
}

// fetch retrieves the payloads for a hash list and concatenates them.
func (fs *FileSystem) fetch(hashes []Hash) ([]byte, error) {
	payloads, err := fs.base.GetMulti(hashes)
	if err != nil {
		return nil, wrapStorageError("could not retrieve chunks", err)
	}

	size := 0
	for _, hash := range hashes {
		size += fs.hasher.Len(hash)
	}

	data := make([]byte, 0, size)
	for _, payload := range payloads {
		data = append(data, payload...)
	}
	return data, nil
}
