package db_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/Ycyken/chunkfs/db"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {

	var tmpDir string
	var store *db.BoltDB[string]

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", TempDirPrefix)
		Ω(err).Should(BeNil())

		store, err = db.OpenBoltDB[string](filepath.Join(tmpDir, "chunks.bdb"), db.StringKeyCodec)
		Ω(err).Should(BeNil())
	})

	AfterEach(func() {
		Ω(store.Close()).Should(BeNil())
		Ω(os.RemoveAll(tmpDir)).Should(BeNil())
	})

	It("should round-trip a key/value pair", func() {
		Ω(store.Insert("foo", []byte("bar"))).Should(BeNil())

		value, err := store.Get("foo")
		Ω(err).Should(BeNil())
		Ω(value).Should(Equal([]byte("bar")))
	})

	It("should fail NotFound for an absent key", func() {
		_, err := store.Get("missing")
		Ω(err).ShouldNot(BeNil())
		Ω(errors.Is(err, db.ErrNotFound)).Should(BeTrue())
	})

	It("should not overwrite a payload on try-insert", func() {
		Ω(store.TryInsert("key", []byte("original"))).Should(BeNil())
		Ω(store.TryInsert("key", []byte("impostor"))).Should(BeNil())

		value, err := store.Get("key")
		Ω(err).Should(BeNil())
		Ω(value).Should(Equal([]byte("original")))
	})

	It("should apply try-insert semantics during multi-insert", func() {
		pairs := []db.Pair[string, []byte]{
			{Key: "a", Value: []byte("1")},
			{Key: "a", Value: []byte("2")},
			{Key: "b", Value: []byte("3")},
		}
		Ω(store.InsertMulti(pairs)).Should(BeNil())

		value, err := store.Get("a")
		Ω(err).Should(BeNil())
		Ω(value).Should(Equal([]byte("1")))
	})

	It("should iterate over a stable snapshot", func() {
		Ω(store.Insert("a", []byte("alpha"))).Should(BeNil())
		Ω(store.Insert("b", []byte("bravo"))).Should(BeNil())

		seen := make(map[string]string)
		cursor := store.Iterator()
		for cursor.Next() {
			pair := cursor.Pair()
			// Mutation during iteration must not disturb the cursor.
			Ω(store.Insert(pair.Key, []byte("mutated"))).Should(BeNil())
			seen[pair.Key] = string(pair.Value)
		}
		Ω(cursor.Error()).Should(BeNil())
		Ω(seen).Should(Equal(map[string]string{"a": "alpha", "b": "bravo"}))
	})

	It("should clear every pair", func() {
		Ω(store.Insert("a", []byte("alpha"))).Should(BeNil())
		Ω(store.Clear()).Should(BeNil())

		Ω(store.Contains("a")).Should(BeFalse())

		// The store remains usable after a clear.
		Ω(store.Insert("b", []byte("bravo"))).Should(BeNil())
		Ω(store.Contains("b")).Should(BeTrue())
	})
})
