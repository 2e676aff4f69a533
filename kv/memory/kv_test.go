package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"go.hopcount.dev/overbench/spec/ident"
)

func testKV() *MemoryKV {
	return WithHashFn(ident.Hash)
}

func TestPutGetOverwrite(t *testing.T) {
	as := require.New(t)
	kv := testKV()

	key := []byte("Casablanca")
	kv.Put(key, []byte("v1"))
	as.Equal(1, kv.Len())

	value, ok := kv.Get(key)
	as.True(ok)
	as.Equal([]byte("v1"), value)

	kv.Put(key, []byte("v2"))
	as.Equal(1, kv.Len())
	value, _ = kv.Get(key)
	as.Equal([]byte("v2"), value)
}

func TestUpdateRequiresResidency(t *testing.T) {
	as := require.New(t)
	kv := testKV()

	as.False(kv.Update([]byte("missing"), []byte("x")))

	kv.Put([]byte("present"), []byte("v1"))
	as.True(kv.Update([]byte("present"), []byte("v2")))
	value, _ := kv.Get([]byte("present"))
	as.Equal([]byte("v2"), value)
}

func TestDelete(t *testing.T) {
	as := require.New(t)
	kv := testKV()

	as.False(kv.Delete([]byte("missing")))

	kv.Put([]byte("present"), []byte("v"))
	as.True(kv.Delete([]byte("present")))
	as.Equal(0, kv.Len())
	_, ok := kv.Get([]byte("present"))
	as.False(ok)
}

func TestEvictImport(t *testing.T) {
	as := require.New(t)
	src := testKV()
	dst := testKV()

	for i := 0; i < 20; i++ {
		src.Put([]byte(fmt.Sprintf("key-%02d", i)), []byte("v"))
	}

	pivot := ident.HashString("key-00")
	moved := src.Evict(func(id uint64) bool {
		return id >= pivot
	})
	for _, e := range moved {
		as.GreaterOrEqual(e.ID, pivot)
		as.Equal(ident.Hash(e.Key), e.ID)
	}
	as.Equal(20, src.Len()+len(moved))

	dst.Import(moved)
	as.Equal(len(moved), dst.Len())
	for _, e := range moved {
		_, ok := dst.Get(e.Key)
		as.True(ok)
	}
}

func TestEntriesSorted(t *testing.T) {
	as := require.New(t)
	kv := testKV()

	for i := 0; i < 10; i++ {
		kv.Put([]byte(fmt.Sprintf("key-%02d", i)), []byte("v"))
	}
	entries := kv.Entries()
	as.Len(entries, 10)
	for i := 1; i < len(entries); i++ {
		as.LessOrEqual(entries[i-1].ID, entries[i].ID)
	}
}
