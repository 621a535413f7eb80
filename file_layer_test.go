package chunkfs_test

import (
	. "github.com/Ycyken/chunkfs"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("FileLayer", func() {

	var fl *FileLayer
	var hasher SimpleHasher

	// Build a span from its payload so the hash carries the length.
	span := func(payload []byte) Span {
		return Span{Hash: hasher.Hash(payload), Length: len(payload)}
	}

	BeforeEach(func() {
		fl = NewFileLayer()
	})

	It("should create a file and return a handle at offset zero", func() {
		handle, err := fl.Create("hello")
		Ω(err).Should(BeNil())
		Ω(handle.Name()).Should(Equal("hello"))
		Ω(handle.Offset()).Should(Equal(0))
	})

	It("should not create two files with the same name", func() {
		_, err := fl.Create("hello")
		Ω(err).Should(BeNil())

		_, err = fl.Create("hello")
		Ω(err).ShouldNot(BeNil())
		Ω(ErrorCode(err)).Should(Equal(ErrAlreadyExists))
	})

	It("should not open a file that does not exist", func() {
		_, err := fl.Open("missing")
		Ω(err).ShouldNot(BeNil())
		Ω(ErrorCode(err)).Should(Equal(ErrNotFound))
	})

	It("should advance the write handle by the span lengths", func() {
		handle, err := fl.Create("file")
		Ω(err).Should(BeNil())

		spans := []Span{span(constBytes(1, 100)), span(constBytes(2, 200))}
		Ω(fl.Write(handle, spans)).Should(BeNil())
		Ω(handle.Offset()).Should(Equal(300))

		Ω(fl.Write(handle, []Span{span(constBytes(3, 50))})).Should(BeNil())
		Ω(handle.Offset()).Should(Equal(350))
	})

	It("should return the complete hash list without modifying the handle", func() {
		handle, err := fl.Create("file")
		Ω(err).Should(BeNil())

		spans := []Span{span([]byte("foo")), span([]byte("barbaz"))}
		Ω(fl.Write(handle, spans)).Should(BeNil())

		reader, err := fl.Open("file")
		Ω(err).Should(BeNil())

		hashes, err := fl.ReadComplete(reader)
		Ω(err).Should(BeNil())
		Ω(hashes).Should(HaveLen(2))
		Ω(hashes[0]).Should(Equal(spans[0].Hash))
		Ω(hashes[1]).Should(Equal(spans[1].Hash))
		Ω(reader.Offset()).Should(Equal(0))
	})

	It("should read at most a segment of spans per block read", func() {
		handle, err := fl.Create("file")
		Ω(err).Should(BeNil())

		// Three quarter-segment spans plus a small trailer.
		quarter := SegSize / 4
		for b := byte(1); b <= 3; b++ {
			Ω(fl.Write(handle, []Span{span(constBytes(b, quarter))})).Should(BeNil())
		}
		Ω(fl.Write(handle, []Span{span([]byte("trailer"))})).Should(BeNil())

		reader, err := fl.Open("file")
		Ω(err).Should(BeNil())

		hashes, err := fl.Read(reader)
		Ω(err).Should(BeNil())
		Ω(hashes).Should(HaveLen(4))
		Ω(reader.Offset()).Should(Equal(3*quarter + 7))

		hashes, err = fl.Read(reader)
		Ω(err).Should(BeNil())
		Ω(hashes).Should(BeEmpty())
		Ω(reader.Offset()).Should(Equal(3*quarter + 7))
	})

	It("should stop a block read before exceeding the segment size", func() {
		handle, err := fl.Create("file")
		Ω(err).Should(BeNil())

		// Two spans that do not fit in one segment together.
		big := SegSize - 100
		Ω(fl.Write(handle, []Span{span(constBytes(1, big)), span(constBytes(2, 200))})).Should(BeNil())

		reader, err := fl.Open("file")
		Ω(err).Should(BeNil())

		hashes, err := fl.Read(reader)
		Ω(err).Should(BeNil())
		Ω(hashes).Should(HaveLen(1))
		Ω(reader.Offset()).Should(Equal(big))

		hashes, err = fl.Read(reader)
		Ω(err).Should(BeNil())
		Ω(hashes).Should(HaveLen(1))
		Ω(reader.Offset()).Should(Equal(big + 200))
	})

	It("should keep independent cursors on separate handles", func() {
		handle, err := fl.Create("file")
		Ω(err).Should(BeNil())
		Ω(fl.Write(handle, []Span{span(constBytes(1, 10))})).Should(BeNil())

		first, err := fl.Open("file")
		Ω(err).Should(BeNil())
		second, err := fl.Open("file")
		Ω(err).Should(BeNil())

		_, err = fl.Read(first)
		Ω(err).Should(BeNil())
		Ω(first.Offset()).Should(Equal(10))
		Ω(second.Offset()).Should(Equal(0))
	})
})
