package chunkfs_test

import (
	"errors"
	"fmt"

	. "github.com/Ycyken/chunkfs"

	"github.com/Ycyken/chunkfs/db"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Errors", func() {

	It("should format the message with the prefix", func() {
		err := NewError("something went wrong", ErrIo, "i/o error: ")
		Ω(err.Error()).Should(Equal("i/o error: something went wrong"))
	})

	It("should report its error code", func() {
		err := Errorf("no file named '%s'", ErrNotFound, "missing")
		Ω(ErrorCode(err)).Should(Equal(ErrNotFound))
		Ω(err.Error()).Should(Equal("no file named 'missing'"))
	})

	It("should return a zero code for foreign errors", func() {
		Ω(ErrorCode(errors.New("plain"))).Should(Equal(0))
		Ω(ErrorCode(nil)).Should(Equal(0))
	})

	It("should expose the wrapped cause to errors.Is", func() {
		cause := fmt.Errorf("lookup: %w", db.ErrNotFound)
		err := WrapError("could not retrieve chunks", ErrNotFound, cause)

		Ω(errors.Is(err, db.ErrNotFound)).Should(BeTrue())
		Ω(ErrorCode(err)).Should(Equal(ErrNotFound))
	})

	It("should include the cause in the message", func() {
		cause := errors.New("disk on fire")
		err := WrapError("could not save chunks", ErrIo, cause)
		Ω(err.Error()).Should(Equal("could not save chunks: disk on fire"))
	})
})
