package chunkfs_test

import (
	. "github.com/Ycyken/chunkfs"

	"github.com/Ycyken/chunkfs/db"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scrubber", func() {

	var cdc *db.MapDatabase[string, Data]
	var target *db.MapDatabase[string, []byte]
	var storage *ChunkStorage[string]

	BeforeEach(func() {
		cdc = db.NewMapDatabase[string, Data]()
		target = db.NewMapDatabase[string, []byte]()
		storage = NewChunkStorage[string](cdc, target, &CopyScrubber[string]{})
	})

	It("should migrate inline chunks to the target map", func() {
		Ω(storage.Insert("a", []byte("alpha"))).Should(BeNil())
		Ω(storage.Insert("b", []byte("bravo!"))).Should(BeNil())

		measurements, err := storage.Scrub()
		Ω(err).Should(BeNil())
		Ω(measurements.ProcessedData).Should(Equal(11))
		Ω(measurements.DataLeft).Should(Equal(0))

		Ω(target.Contains("a")).Should(BeTrue())
		Ω(target.Contains("b")).Should(BeTrue())

		// The CDC entries are now markers, not payloads.
		data, err := cdc.Get("a")
		Ω(err).Should(BeNil())
		Ω(data.IsTarget()).Should(BeTrue())
	})

	It("should serve reads from whichever store owns the payload", func() {
		Ω(storage.Insert("a", []byte("alpha"))).Should(BeNil())

		payload, err := storage.Get("a")
		Ω(err).Should(BeNil())
		Ω(payload).Should(Equal([]byte("alpha")))

		_, err = storage.Scrub()
		Ω(err).Should(BeNil())

		payload, err = storage.Get("a")
		Ω(err).Should(BeNil())
		Ω(payload).Should(Equal([]byte("alpha")))
	})

	It("should not double-store payloads across repeated passes", func() {
		Ω(storage.Insert("a", []byte("alpha"))).Should(BeNil())

		first, err := storage.Scrub()
		Ω(err).Should(BeNil())
		Ω(first.ProcessedData).Should(Equal(5))

		second, err := storage.Scrub()
		Ω(err).Should(BeNil())
		Ω(second.ProcessedData).Should(Equal(0))
		Ω(second.DataLeft).Should(Equal(0))
	})

	It("should fail NotFound for an unknown key", func() {
		_, err := storage.Get("ghost")
		Ω(err).ShouldNot(BeNil())
		Ω(err).Should(MatchError(db.ErrNotFound))
	})

	It("should scrub into a persistent target map", func() {
		// The disk database also serves as a scrub target.
		tmp, err := diskPath()
		Ω(err).Should(BeNil())

		disk, err := db.NewDiskDatabase[string](tmp, 4*MB)
		Ω(err).Should(BeNil())
		defer disk.Close()

		storage = NewChunkStorage[string](cdc, disk, &CopyScrubber[string]{})
		Ω(storage.Insert("a", constBytes(9, 8*KB))).Should(BeNil())

		_, err = storage.Scrub()
		Ω(err).Should(BeNil())

		payload, err := storage.Get("a")
		Ω(err).Should(BeNil())
		Ω(payload).Should(Equal(constBytes(9, 8*KB)))
	})
})
