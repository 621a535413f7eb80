// Hashers that produce content addresses for chunks. All hashers wrap
// their digest with the length of the chunk that produced it, so that the
// file layer can recover span lengths from hashes alone.

package chunkfs

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/spaolacci/murmur3"

	"github.com/Ycyken/chunkfs/db"
)

// Specifies the names of available hashing algorithms
const (
	Simple = "simple"
	MD5    = "md5"
	SHA1   = "sha1"
	SHA224 = "sha224"
	SHA256 = "sha256"
	Murmur = "murmur"
)

// Names of hashing algorithms for validation
var hashingAlgorithmNames = []string{Simple, MD5, SHA1, SHA224, SHA256, Murmur}

//===========================================================================
// Hash and Hasher
//===========================================================================

// Hash is the content address of a chunk. Sum is the encoded digest and
// Size records the length of the chunk that produced it. The struct is
// comparable, usable as a map key, and its zero value is the null hash.
//
// Dedup correctness assumes digest collisions are negligible; payloads are
// never compared byte-for-byte.
type Hash struct {
	Sum  string // Encoded digest of the chunk contents
	Size int    // Length in bytes of the chunk that was hashed
}

// Hasher maps byte slices to hashes. Equal inputs must produce equal
// hashes and distinct inputs must collide only with cryptographic or
// near-cryptographic improbability.
type Hasher interface {
	Hash(data []byte) Hash // Returns the content address of the data
	Len(hash Hash) int     // Returns the length of the chunk that produced the hash
}

// CreateHasher evaluates the name passed in and initializes the
// appropriate hashing algorithm for use with a FileSystem.
// NOTE: murmur is optimized for x64 and yields different values on x86.
func CreateHasher(name string) (Hasher, error) {
	switch name {
	case Simple:
		return SimpleHasher{}, nil
	case MD5:
		return NewSignedHasher(md5.New), nil
	case SHA1:
		return NewSignedHasher(sha1.New), nil
	case SHA224:
		return NewSignedHasher(sha256.New224), nil
	case SHA256:
		return NewSignedHasher(sha256.New), nil
	case Murmur:
		return NewSignedHasher(func() hash.Hash {
			return murmur3.New128()
		}), nil
	default:
		return nil, ImproperlyConfigured("unknown hashing algorithm: '%s'", name)
	}
}

//===========================================================================
// SimpleHasher
//===========================================================================

// SimpleHasher uses the chunk contents as their own address. It exists for
// unit tests and diagnostics where collision-free addressing must be exact
// rather than probabilistic; real workloads should use a digest hasher.
type SimpleHasher struct{}

// Hash returns the data itself as the address.
func (SimpleHasher) Hash(data []byte) Hash {
	return Hash{Sum: string(data), Size: len(data)}
}

// Len returns the length of the chunk that produced the hash.
func (SimpleHasher) Len(hash Hash) int {
	return hash.Size
}

//===========================================================================
// SignedHasher
//===========================================================================

// SignedHasher produces URL-safe base64 signatures from an arbitrary
// hashing algorithm, the same encoding used for blob signatures elsewhere
// in the ecosystem.
type SignedHasher struct {
	hasher func() hash.Hash // The hashing algorithm to sign chunks
}

// NewSignedHasher creates a SignedHasher over the given algorithm.
func NewSignedHasher(algorithm func() hash.Hash) *SignedHasher {
	return &SignedHasher{hasher: algorithm}
}

// Hash computes the digest of the data and wraps it with the data length.
func (h *SignedHasher) Hash(data []byte) Hash {
	digest := h.hasher()
	digest.Write(data)
	return Hash{
		Sum:  base64.RawURLEncoding.EncodeToString(digest.Sum(nil)),
		Size: len(data),
	}
}

// Len returns the length of the chunk that produced the hash.
func (h *SignedHasher) Len(hash Hash) int {
	return hash.Size
}

// SetHasher replaces the hashing algorithm. Doing this in the middle of a
// write sequence gives some chunks a different address space than others,
// which is not recommended.
func (h *SignedHasher) SetHasher(algorithm func() hash.Hash) {
	h.hasher = algorithm
}

//===========================================================================
// Key codec for on-disk stores
//===========================================================================

// HashKeyCodec converts Hash keys to and from bytes for the LevelDB and
// BoltDB drivers: a uvarint chunk length followed by the digest bytes.
var HashKeyCodec = db.KeyCodec[Hash]{
	Marshal:   marshalHashKey,
	Unmarshal: unmarshalHashKey,
}

func marshalHashKey(h Hash) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(h.Sum))
	n := binary.PutUvarint(buf, uint64(h.Size))
	copy(buf[n:], h.Sum)
	return buf[:n+len(h.Sum)]
}

func unmarshalHashKey(data []byte) (Hash, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return Hash{}, fmt.Errorf("bad hash key prefix: %w", db.ErrInvalidData)
	}
	return Hash{Sum: string(data[n:]), Size: int(size)}, nil
}
