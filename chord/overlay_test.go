package chord

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"go.hopcount.dev/overbench/spec/ident"
	"go.hopcount.dev/overbench/spec/overlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func devOverlay(t *testing.T, as *require.Assertions) *Overlay {
	o, err := New(DefaultConfig(zaptest.NewLogger(t)))
	as.NoError(err)
	return o
}

func makeRing(t *testing.T, as *require.Assertions, num int) *Overlay {
	o := devOverlay(t, as)
	for i := 0; i < num; i++ {
		_, _, err := o.Join(fmt.Sprintf("node-%03d", i))
		as.NoError(err)
		as.NoError(o.MaintenanceBarrier())
	}
	ringCheck(as, o)
	return o
}

// ringCheck asserts successor consistency and full coverage: walking the
// sorted identifiers, every node's successor is the next id and that
// successor points back via its predecessor.
func ringCheck(as *require.Assertions, o *Overlay) {
	ids := o.Nodes()
	as.True(sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))

	if len(ids) == 1 {
		n := o.get(ids[0])
		as.Equal(n.id, o.firstLiveSuccessor(n).id)
		return
	}
	for i, id := range ids {
		n := o.get(id)
		succ := o.firstLiveSuccessor(n)
		as.NotNil(succ)
		as.Equal(ids[(i+1)%len(ids)], succ.id, "successor of %012x", id)
		as.True(succ.hasPred)
		as.Equal(id, succ.predecessor, "predecessor of %012x", succ.id)
	}
}

func residencyCheck(as *require.Assertions, o *Overlay) {
	for _, id := range o.Nodes() {
		for _, e := range o.get(id).store.Entries() {
			owner, err := o.Responsible(e.ID)
			as.NoError(err)
			as.Equal(owner, id, "key %s resident at %012x, owner is %012x", e.Key, id, owner)
		}
	}
}

func TestRingFormation(t *testing.T) {
	for _, num := range []int{1, 2, 3, 8, 32} {
		t.Run(fmt.Sprintf("%d nodes", num), func(t *testing.T) {
			makeRing(t, require.New(t), num)
		})
	}
}

func TestFingerTargets(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 16)

	for _, id := range o.Nodes() {
		n := o.get(id)
		for i := 0; i < ident.MaxBits; i++ {
			start := ident.ModuloSum(id, 1<<uint(i))
			want, err := o.Responsible(start)
			as.NoError(err)
			as.Equal(want, n.fingers[i], "finger %d of %012x", i, id)
		}
	}
}

func TestKVRoundTrip(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 8)
	rng := rand.New(rand.NewSource(1))
	nodes := o.Nodes()
	origin := func() uint64 { return nodes[rng.Intn(len(nodes))] }

	key := []byte("The Godfather")

	_, _, err := o.Get(origin(), key)
	as.ErrorIs(err, overlay.ErrKeyNotFound)

	_, err = o.Put(origin(), key, []byte("v1"))
	as.NoError(err)
	value, _, err := o.Get(origin(), key)
	as.NoError(err)
	as.Equal([]byte("v1"), value)

	_, err = o.Update(origin(), key, []byte("v2"))
	as.NoError(err)
	value, _, err = o.Get(origin(), key)
	as.NoError(err)
	as.Equal([]byte("v2"), value)

	_, err = o.Delete(origin(), key)
	as.NoError(err)
	_, _, err = o.Get(origin(), key)
	as.ErrorIs(err, overlay.ErrKeyNotFound)

	_, err = o.Update(origin(), key, []byte("v3"))
	as.ErrorIs(err, overlay.ErrKeyNotFound)
	_, err = o.Delete(origin(), key)
	as.ErrorIs(err, overlay.ErrKeyNotFound)
}

func TestSingleNodeOwnsEverything(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 1)
	origin := o.Nodes()[0]

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		r, err := o.Put(origin, key, []byte("v"))
		as.NoError(err)
		as.Equal(0, r.Hops)
		as.Equal(origin, r.Target)

		_, r, err = o.Get(origin, key)
		as.NoError(err)
		as.Equal(0, r.Hops)
	}
}

func TestEmptyOverlay(t *testing.T) {
	as := require.New(t)
	o := devOverlay(t, as)

	_, err := o.Delete(1, []byte("anything"))
	as.ErrorIs(err, overlay.ErrOverlayEmpty)
	_, _, err = o.Get(1, []byte("anything"))
	as.ErrorIs(err, overlay.ErrOverlayEmpty)
	_, err = o.Responsible(1)
	as.ErrorIs(err, overlay.ErrOverlayEmpty)
}

func TestIdFormat(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 2)

	_, _, err := o.Get(ident.MaxIdentifier+1, []byte("anything"))
	as.ErrorIs(err, overlay.ErrIdFormat)
	_, err = o.Leave(ident.MaxIdentifier + 1)
	as.ErrorIs(err, overlay.ErrIdFormat)
}

func TestKeyResidencyUnderChurn(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 10)
	rng := rand.New(rand.NewSource(42))

	inserted := make(map[string][]byte)
	for i := 0; i < 60; i++ {
		key := fmt.Sprintf("movie-%03d", i)
		value := []byte(fmt.Sprintf("value-%03d", i))
		nodes := o.Nodes()
		_, err := o.Put(nodes[rng.Intn(len(nodes))], []byte(key), value)
		as.NoError(err)
		inserted[key] = value
	}
	residencyCheck(as, o)

	for i := 0; i < 5; i++ {
		_, _, err := o.Join(fmt.Sprintf("churn-%03d", i))
		as.NoError(err)
		as.NoError(o.MaintenanceBarrier())
		residencyCheck(as, o)

		nodes := o.Nodes()
		victim := nodes[rng.Intn(len(nodes))]
		_, err = o.Leave(victim)
		as.NoError(err)
		as.NoError(o.MaintenanceBarrier())
		residencyCheck(as, o)
		ringCheck(as, o)
	}

	// every surviving key still resolves to its last written value
	as.Equal(len(inserted), o.Keys())
	nodes := o.Nodes()
	for key, want := range inserted {
		value, _, err := o.Get(nodes[rng.Intn(len(nodes))], []byte(key))
		as.NoError(err)
		as.Equal(want, value)
	}
}

func TestLookupHopBound(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 32)
	rng := rand.New(rand.NewSource(7))
	nodes := o.Nodes()

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		_, err := o.Put(nodes[rng.Intn(len(nodes))], key, []byte("v"))
		as.NoError(err)
	}

	total := 0
	const lookups = 300
	for i := 0; i < lookups; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i%100))
		_, r, err := o.Get(nodes[rng.Intn(len(nodes))], key)
		as.NoError(err)
		as.LessOrEqual(r.Hops, o.hopBudget())
		total += r.Hops
	}
	// expected O(log N): ceil(log2 32) = 5
	as.LessOrEqual(float64(total)/lookups, 5.0)
}

func TestDuplicateJoin(t *testing.T) {
	as := require.New(t)
	o := makeRing(t, as, 2)

	// same label hashes to a taken id, the re-hash path must yield a new one
	id, _, err := o.Join("node-000")
	as.NoError(err)
	as.Equal(ident.HashString("node-000#1"), id)
}
