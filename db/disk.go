// Implements the Database interface over a raw block device or a regular
// file opened with direct-I/O semantics.

package db

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux block device ioctls used to discover device geometry. Both take a
// pointer to an integer output.
const (
	blkGetSize64 = 0x80081272 // BLKGETSIZE64: device capacity in bytes
	blkSSZGet    = 0x1268     // BLKSSZGET: logical sector size in bytes
)

// fileBlockSize is the block size used when the backing object is a
// regular file rather than a block device.
const fileBlockSize = 512

// dataInfo locates one stored value on the device. The payload lives at
// byte offset startBlock*blockSize, occupies ceil(dataLength/blockSize)
// blocks, and the trailing bytes of the last block are zero padding.
type dataInfo struct {
	startBlock uint64
	dataLength uint64
}

// DiskDatabase is a block-aligned chunk store on a raw device or a
// direct-I/O file. Blocks are allocated sequentially from the front and
// never reclaimed: there is no per-key deletion, and Clear simply resets
// the allocation pointer. The hash index is held in memory only, so
// previously written blocks are unreachable after a restart.
//
// A single mutex guards the whole structure; reads use positioned I/O and
// do not disturb any file cursor.
type DiskDatabase[K comparable] struct {
	mu         sync.Mutex
	device     *os.File
	index      map[K]dataInfo
	totalSize  uint64
	blockSize  uint64
	usedBlocks uint64
}

//===========================================================================
// Constructors
//===========================================================================

// NewDiskDatabase creates a disk database over a regular file at the given
// path with the caller-specified capacity. The file is created or
// truncated and opened with O_DIRECT; the block size is fixed at 512. On
// filesystems that reject O_DIRECT the file is reopened without the flag
// and writes go through the page cache, with the same on-disk layout.
func NewDiskDatabase[K comparable](path string, totalSize uint64) (*DiskDatabase[K], error) {
	flags := os.O_RDWR | os.O_CREATE | os.O_TRUNC
	device, err := os.OpenFile(path, flags|unix.O_DIRECT, 0644)
	if err != nil {
		device, err = os.OpenFile(path, flags, 0644)
		if err != nil {
			return nil, err
		}
	}

	if err := device.Truncate(int64(totalSize)); err != nil {
		device.Close()
		return nil, err
	}

	return &DiskDatabase[K]{
		device:    device,
		index:     make(map[K]dataInfo),
		totalSize: totalSize,
		blockSize: fileBlockSize,
	}, nil
}

// OpenBlockDevice opens a disk database over an existing raw block device.
// The device capacity and sector size are queried with the BLKGETSIZE64
// and BLKSSZGET ioctls.
func OpenBlockDevice[K comparable](path string) (*DiskDatabase[K], error) {
	device, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fd := int(device.Fd())
	totalSize, err := unix.IoctlGetInt(fd, blkGetSize64)
	if err != nil {
		device.Close()
		return nil, fmt.Errorf("ioctl BLKGETSIZE64 on %s: %w", path, err)
	}

	blockSize, err := unix.IoctlGetInt(fd, blkSSZGet)
	if err != nil {
		device.Close()
		return nil, fmt.Errorf("ioctl BLKSSZGET on %s: %w", path, err)
	}
	if blockSize == 0 {
		device.Close()
		return nil, fmt.Errorf("%s reports zero sector size: %w", path, ErrInvalidData)
	}

	return &DiskDatabase[K]{
		device:    device,
		index:     make(map[K]dataInfo),
		totalSize: uint64(totalSize),
		blockSize: uint64(blockSize),
	}, nil
}

// Close releases the device handle. The in-memory index is discarded with
// the database value.
func (d *DiskDatabase[K]) Close() error {
	return d.device.Close()
}

//===========================================================================
// On-disk encoding and block math
//===========================================================================

// encodeValue serializes a payload with a self-describing length prefix.
func encodeValue(value []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(value))
	n := binary.PutUvarint(buf, uint64(len(value)))
	copy(buf[n:], value)
	return buf[:n+len(value)]
}

// decodeValue recovers a payload from its length-prefixed encoding. The
// input may carry trailing block padding; the prefix self-terminates.
func decodeValue(encoded []byte) ([]byte, error) {
	length, n := binary.Uvarint(encoded)
	if n <= 0 || length > uint64(len(encoded)-n) {
		return nil, fmt.Errorf("bad length prefix: %w", ErrInvalidData)
	}

	value := make([]byte, length)
	copy(value, encoded[n:uint64(n)+length])
	return value, nil
}

// blocksFor returns the number of blocks occupied by length bytes.
func (d *DiskDatabase[K]) blocksFor(length uint64) uint64 {
	return (length + d.blockSize - 1) / d.blockSize
}

// alignedBuffer allocates a buffer of the given size whose backing memory
// is aligned to align bytes. O_DIRECT transfers require sector-aligned
// buffers in addition to sector-aligned sizes and offsets.
func alignedBuffer(size, align int) []byte {
	buf := make([]byte, size+align)
	shift := align - int(uintptr(unsafe.Pointer(&buf[0]))&uintptr(align-1))
	if shift == align {
		shift = 0
	}
	return buf[shift : shift+size]
}

//===========================================================================
// Write and read protocols
//===========================================================================

// write stores an encoded value at the allocation frontier and returns its
// location. The allocation pointer advances only after the full padded
// buffer is on disk, so a failed write leaves dead space but never a
// reachable torn value.
func (d *DiskDatabase[K]) write(value []byte) (dataInfo, error) {
	encoded := encodeValue(value)
	dataLength := uint64(len(encoded))
	blocks := d.blocksFor(dataLength)

	if d.usedBlocks*d.blockSize+dataLength > d.totalSize {
		return dataInfo{}, fmt.Errorf("%d bytes do not fit in %d remaining: %w",
			dataLength, d.totalSize-d.usedBlocks*d.blockSize, ErrOutOfMemory)
	}

	padded := alignedBuffer(int(blocks*d.blockSize), int(d.blockSize))
	copy(padded, encoded)

	if _, err := d.device.WriteAt(padded, int64(d.usedBlocks*d.blockSize)); err != nil {
		return dataInfo{}, err
	}

	info := dataInfo{startBlock: d.usedBlocks, dataLength: dataLength}
	d.usedBlocks += blocks
	return info, nil
}

// read recovers the value described by info using a positioned read.
func (d *DiskDatabase[K]) read(info dataInfo) ([]byte, error) {
	padded := alignedBuffer(int(d.blocksFor(info.dataLength)*d.blockSize), int(d.blockSize))
	if _, err := d.device.ReadAt(padded, int64(info.startBlock*d.blockSize)); err != nil {
		return nil, err
	}
	return decodeValue(padded[:info.dataLength])
}

//===========================================================================
// Database interface
//===========================================================================

// TryInsert stores the payload unless the key is already present.
func (d *DiskDatabase[K]) TryInsert(key K, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[key]; ok {
		return nil
	}

	info, err := d.write(value)
	if err != nil {
		return err
	}
	d.index[key] = info
	return nil
}

// Insert stores the payload, overwriting the index entry for the key. The
// previous payload's blocks become dead space.
func (d *DiskDatabase[K]) Insert(key K, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.write(value)
	if err != nil {
		return err
	}
	d.index[key] = info
	return nil
}

// Get returns the payload for the key or ErrNotFound.
func (d *DiskDatabase[K]) Get(key K) ([]byte, error) {
	d.mu.Lock()
	info, ok := d.index[key]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%v: %w", key, ErrNotFound)
	}
	return d.read(info)
}

// Contains reports whether the key is present in the index.
func (d *DiskDatabase[K]) Contains(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.index[key]
	return ok
}

// InsertMulti try-inserts each pair in order, stopping on the first
// failure.
func (d *DiskDatabase[K]) InsertMulti(pairs []Pair[K, []byte]) error {
	for _, pair := range pairs {
		if err := d.TryInsert(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// GetMulti returns the payloads for the keys in the input key order.
func (d *DiskDatabase[K]) GetMulti(keys []K) ([][]byte, error) {
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, err := d.Get(key)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

//===========================================================================
// IterableDatabase interface
//===========================================================================

// Iterator returns a cursor over a snapshot of the index. Values are read
// from the device as the cursor advances.
func (d *DiskDatabase[K]) Iterator() Cursor[K, []byte] {
	return &diskCursor[K]{db: d, keys: d.Keys(), index: -1}
}

// Keys returns all keys currently in the index.
func (d *DiskDatabase[K]) Keys() []K {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]K, 0, len(d.index))
	for key := range d.index {
		keys = append(keys, key)
	}
	return keys
}

// Values reads back every stored payload.
func (d *DiskDatabase[K]) Values() ([][]byte, error) {
	keys := d.Keys()
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, err := d.Get(key)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Clear empties the index and resets the allocation pointer to the front
// of the device. The old contents are not zeroed, only unreferenced.
func (d *DiskDatabase[K]) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.index = make(map[K]dataInfo)
	d.usedBlocks = 0
	return nil
}

//===========================================================================
// diskCursor type and methods
//===========================================================================

// diskCursor iterates over an index snapshot, fetching payloads lazily.
type diskCursor[K comparable] struct {
	db    *DiskDatabase[K]
	keys  []K
	index int
	pair  *Pair[K, []byte]
	err   error
}

// Next returns true if there is another key/value pair available.
func (c *diskCursor[K]) Next() bool {
	c.index++
	if c.index >= len(c.keys) {
		return false
	}

	value, err := c.db.Get(c.keys[c.index])
	if err != nil {
		c.err = err
		return false
	}

	c.pair = &Pair[K, []byte]{Key: c.keys[c.index], Value: value}
	return true
}

// Pair returns the current key/value pair on the cursor.
func (c *diskCursor[K]) Pair() *Pair[K, []byte] {
	return c.pair
}

// Error returns any errors encountered while reading values.
func (c *diskCursor[K]) Error() error {
	return c.err
}
