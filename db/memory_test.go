package db_test

import (
	"errors"

	"github.com/Ycyken/chunkfs/db"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MapDatabase", func() {

	var store *db.MapDatabase[string, []byte]

	BeforeEach(func() {
		store = db.NewMapDatabase[string, []byte]()
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

	It("should not overwrite on try-insert", func() {
		Ω(store.TryInsert("foo", []byte("first"))).Should(BeNil())
		Ω(store.TryInsert("foo", []byte("second"))).Should(BeNil())

		value, err := store.Get("foo")
		Ω(err).Should(BeNil())
		Ω(value).Should(Equal([]byte("first")))
	})

	It("should overwrite on insert", func() {
		Ω(store.Insert("foo", []byte("first"))).Should(BeNil())
		Ω(store.Insert("foo", []byte("second"))).Should(BeNil())

		value, err := store.Get("foo")
		Ω(err).Should(BeNil())
		Ω(value).Should(Equal([]byte("second")))
	})

	It("should report membership", func() {
		Ω(store.Contains("foo")).Should(BeFalse())
		Ω(store.Insert("foo", []byte("bar"))).Should(BeNil())
		Ω(store.Contains("foo")).Should(BeTrue())
	})

	It("should return multi-get values in input key order", func() {
		Ω(store.Insert("a", []byte("1"))).Should(BeNil())
		Ω(store.Insert("b", []byte("2"))).Should(BeNil())
		Ω(store.Insert("c", []byte("3"))).Should(BeNil())

		values, err := store.GetMulti([]string{"c", "a", "b"})
		Ω(err).Should(BeNil())
		Ω(values).Should(Equal([][]byte{[]byte("3"), []byte("1"), []byte("2")}))
	})

	It("should abort multi-get on the first missing key", func() {
		Ω(store.Insert("a", []byte("1"))).Should(BeNil())

		_, err := store.GetMulti([]string{"a", "ghost"})
		Ω(err).ShouldNot(BeNil())
		Ω(errors.Is(err, db.ErrNotFound)).Should(BeTrue())
	})

	It("should apply try-insert semantics during multi-insert", func() {
		pairs := []db.Pair[string, []byte]{
			{Key: "a", Value: []byte("1")},
			{Key: "a", Value: []byte("2")},
		}
		Ω(store.InsertMulti(pairs)).Should(BeNil())

		value, err := store.Get("a")
		Ω(err).Should(BeNil())
		Ω(value).Should(Equal([]byte("1")))
		Ω(store.Len()).Should(Equal(1))
	})

	It("should iterate over every pair", func() {
		Ω(store.Insert("a", []byte("1"))).Should(BeNil())
		Ω(store.Insert("b", []byte("2"))).Should(BeNil())

		seen := make(map[string]string)
		cursor := store.Iterator()
		for cursor.Next() {
			pair := cursor.Pair()
			seen[pair.Key] = string(pair.Value)
		}
		Ω(cursor.Error()).Should(BeNil())
		Ω(seen).Should(Equal(map[string]string{"a": "1", "b": "2"}))
	})

	It("should clear every pair", func() {
		Ω(store.Insert("a", []byte("1"))).Should(BeNil())
		Ω(store.Clear()).Should(BeNil())

		Ω(store.Len()).Should(Equal(0))
		_, err := store.Get("a")
		Ω(errors.Is(err, db.ErrNotFound)).Should(BeTrue())
	})
})
