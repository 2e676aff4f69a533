// Package memory holds the node-local key store. Writes follow the overlay's
// single-writer discipline; reads may come from concurrent lookup tasks, so
// the store is built on skip list maps rather than a mutex around a plain map.
package memory

import (
	"github.com/zhangyunhao116/skipmap"
	"go.uber.org/atomic"
)

type HashFn func([]byte) uint64

// Entry is one resident record along with its routing identifier, the unit
// of key handoff between nodes.
type Entry struct {
	ID    uint64
	Key   []byte
	Value []byte
}

type MemoryKV struct {
	s      *skipmap.Uint64Map[*skipmap.StringMap[[]byte]]
	hashFn HashFn
	size   atomic.Int64
}

func newInnerMapFunc() *skipmap.StringMap[[]byte] {
	return skipmap.NewString[[]byte]()
}

func WithHashFn(fn HashFn) *MemoryKV {
	return &MemoryKV{
		s:      skipmap.NewUint64[*skipmap.StringMap[[]byte]](),
		hashFn: fn,
	}
}

func (m *MemoryKV) Put(key, value []byte) {
	kMap, _ := m.s.LoadOrStoreLazy(m.hashFn(key), newInnerMapFunc)
	if _, loaded := kMap.LoadOrStore(string(key), value); loaded {
		kMap.Store(string(key), value)
	} else {
		m.size.Inc()
	}
}

func (m *MemoryKV) Get(key []byte) ([]byte, bool) {
	kMap, ok := m.s.Load(m.hashFn(key))
	if !ok {
		return nil, false
	}
	return kMap.Load(string(key))
}

// Update overwrites an existing key and reports whether it was resident.
func (m *MemoryKV) Update(key, value []byte) bool {
	kMap, ok := m.s.Load(m.hashFn(key))
	if !ok {
		return false
	}
	if _, ok := kMap.Load(string(key)); !ok {
		return false
	}
	kMap.Store(string(key), value)
	return true
}

func (m *MemoryKV) Delete(key []byte) bool {
	kMap, ok := m.s.Load(m.hashFn(key))
	if !ok {
		return false
	}
	if kMap.Delete(string(key)) {
		m.size.Dec()
		return true
	}
	return false
}

func (m *MemoryKV) Len() int {
	return int(m.size.Load())
}

// Entries snapshots every resident record in ascending identifier order.
func (m *MemoryKV) Entries() []Entry {
	out := make([]Entry, 0, m.Len())
	m.s.Range(func(id uint64, kMap *skipmap.StringMap[[]byte]) bool {
		kMap.Range(func(key string, value []byte) bool {
			out = append(out, Entry{ID: id, Key: []byte(key), Value: value})
			return true
		})
		return true
	})
	return out
}

// Evict removes and returns every entry whose identifier matches pred,
// leaving the rest resident. Used for key handoff on join and leave.
func (m *MemoryKV) Evict(pred func(id uint64) bool) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if !pred(e.ID) {
			continue
		}
		if kMap, ok := m.s.Load(e.ID); ok && kMap.Delete(string(e.Key)) {
			m.size.Dec()
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryKV) Import(entries []Entry) {
	for _, e := range entries {
		m.Put(e.Key, e.Value)
	}
}
