// Implements the file layer: the mapping from file names to their ordered
// span lists, and the handle cursors used for sequential reads and writes.

package chunkfs

import "github.com/google/uuid"

//===========================================================================
// Spans and Files
//===========================================================================

// Span is the stored twin of a chunk: the hash under which the payload
// lives in the database and the payload length.
type Span struct {
	Hash   Hash // Content address of the chunk payload
	Length int  // Number of payload bytes
}

// FileSpan is a span placed within a file, recorded by the byte offset at
// which it begins. Within a file the offsets are strictly non-decreasing
// and the span lengths tile the file exactly.
type FileSpan struct {
	Hash   Hash // Content address of the chunk payload
	Offset int  // Byte offset of the span within the file
}

// File is a named, append-only ordered sequence of file spans. A file has
// no size field; its length is the sum of its span lengths.
type File struct {
	name  string
	spans []FileSpan
}

// Size returns the total number of payload bytes in the file.
func (f *File) Size() int {
	size := 0
	for _, span := range f.spans {
		size += span.Hash.Size
	}
	return size
}

//===========================================================================
// File Handles
//===========================================================================

// FileHandle is an ephemeral cursor over an opened file. Two handles on
// the same name are independent cursors. The handle stores the file name
// by value, not a back-reference, so the file layer may be mutated during
// the handle's lifetime.
type FileHandle struct {
	id       uuid.UUID // Identity used by the file system for per-handle state
	fileName string    // The name of the file this handle refers to
	offset   int       // Total bytes written, or the position of the next read
}

func newFileHandle(file *File) *FileHandle {
	return &FileHandle{
		id:       uuid.New(),
		fileName: file.name,
	}
}

// Name returns the name of the file this handle refers to.
func (h *FileHandle) Name() string {
	return h.fileName
}

// Offset returns the handle's current byte offset.
func (h *FileHandle) Offset() int {
	return h.offset
}

//===========================================================================
// File Layer
//===========================================================================

// FileLayer holds every file by name. Files exist for the lifetime of the
// layer; there is no truncation or deletion in this core.
type FileLayer struct {
	files map[string]*File
}

// NewFileLayer creates an empty file layer.
func NewFileLayer() *FileLayer {
	return &FileLayer{files: make(map[string]*File)}
}

// Create inserts a new empty file and returns a fresh handle at offset 0.
func (fl *FileLayer) Create(name string) (*FileHandle, error) {
	if _, ok := fl.files[name]; ok {
		return nil, Errorf("file '%s' already exists", ErrAlreadyExists, name)
	}

	file := &File{name: name}
	fl.files[name] = file
	return newFileHandle(file), nil
}

// Open returns a handle at offset 0 for an existing file.
func (fl *FileLayer) Open(name string) (*FileHandle, error) {
	file, ok := fl.files[name]
	if !ok {
		return nil, Errorf("file '%s' does not exist", ErrNotFound, name)
	}
	return newFileHandle(file), nil
}

func (fl *FileLayer) findFile(handle *FileHandle) (*File, error) {
	file, ok := fl.files[handle.fileName]
	if !ok {
		return nil, Errorf("file '%s' does not exist", ErrNotFound, handle.fileName)
	}
	return file, nil
}

// Write appends spans to the end of the file and advances the handle by
// the bytes they cover. Spans must arrive in the order produced by the
// chunker; out-of-order spans are a programming error and not checked.
func (fl *FileLayer) Write(handle *FileHandle, spans []Span) error {
	file, err := fl.findFile(handle)
	if err != nil {
		return err
	}

	for _, span := range spans {
		file.spans = append(file.spans, FileSpan{Hash: span.Hash, Offset: handle.offset})
		handle.offset += span.Length
	}
	return nil
}

// ReadComplete returns the full hash list of the file in order. The
// handle is not modified.
func (fl *FileLayer) ReadComplete(handle *FileHandle) ([]Hash, error) {
	file, err := fl.findFile(handle)
	if err != nil {
		return nil, err
	}

	hashes := make([]Hash, 0, len(file.spans))
	for _, span := range file.spans {
		hashes = append(hashes, span.Hash)
	}
	return hashes, nil
}

// Read is a block-granularity read: it walks forward from the handle's
// offset collecting hashes while the cumulative span lengths stay within
// SegSize, then advances the handle by exactly the bytes covered. At the
// end of the file it returns an empty list.
func (fl *FileLayer) Read(handle *FileHandle) ([]Hash, error) {
	file, err := fl.findFile(handle)
	if err != nil {
		return nil, err
	}

	var hashes []Hash
	bytesRead := 0
	for _, span := range file.spans {
		if span.Offset < handle.offset {
			continue
		}
		if bytesRead+span.Hash.Size > SegSize {
			break
		}
		hashes = append(hashes, span.Hash)
		bytesRead += span.Hash.Size
	}

	handle.offset += bytesRead
	return hashes, nil
}
