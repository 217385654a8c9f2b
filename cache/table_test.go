package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

// object has identity; its hash is its name, so distinct objects with the
// same name collide.
type object struct {
	name string
}

func objectHash(o *object) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(o.name); i++ {
		h ^= uint64(o.name[i])
		h *= 1099511628211
	}
	return h
}

func objectSame(a, b *object) bool { return a == b }

func newObjectTable() *Table[*object, int] {
	return NewTable[*object, int](objectHash, objectSame)
}

func intPtr(v int) *int { return &v }

func TestNewTable(t *testing.T) {
	tbl := newObjectTable()
	if tbl.Len() != 0 {
		t.Errorf("expected empty table, got %d entries", tbl.Len())
	}
	hits, misses := tbl.Stats()
	if hits != 0 || misses != 0 {
		t.Errorf("expected zero stats, got hits=%d, misses=%d", hits, misses)
	}
}

func TestTableGetOrCreate(t *testing.T) {
	tbl := newObjectTable()
	key := &object{name: "a"}
	createCalled := 0

	v1, created := tbl.GetOrCreate(key, func() *int {
		createCalled++
		return intPtr(100)
	})
	if !created {
		t.Error("expected first call to create")
	}
	if *v1 != 100 {
		t.Errorf("expected 100, got %d", *v1)
	}

	v2, created := tbl.GetOrCreate(key, func() *int {
		createCalled++
		return intPtr(200)
	})
	if created {
		t.Error("expected second call to hit")
	}
	if v2 != v1 {
		t.Error("expected the same value pointer from the table")
	}
	if createCalled != 1 {
		t.Errorf("expected create called once, got %d", createCalled)
	}

	hits, misses := tbl.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got hits=%d, misses=%d", hits, misses)
	}
}

func TestTableCollidingKeysStayDistinct(t *testing.T) {
	tbl := newObjectTable()
	a := &object{name: "same"}
	b := &object{name: "same"}

	if objectHash(a) != objectHash(b) {
		t.Fatal("test keys must collide")
	}

	va, _ := tbl.GetOrCreate(a, func() *int { return intPtr(1) })
	vb, created := tbl.GetOrCreate(b, func() *int { return intPtr(2) })
	if !created {
		t.Error("colliding but unequal key must create its own entry")
	}
	if va == vb {
		t.Error("colliding keys must map to distinct values")
	}
	if tbl.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", tbl.Len())
	}

	got, ok := tbl.Get(a)
	if !ok || got != va {
		t.Error("Get(a) must return a's value")
	}
	got, ok = tbl.Get(b)
	if !ok || got != vb {
		t.Error("Get(b) must return b's value")
	}
}

func TestTableGetMissing(t *testing.T) {
	tbl := newObjectTable()
	if _, ok := tbl.Get(&object{name: "x"}); ok {
		t.Error("expected missing key")
	}
}

func TestTablePanicInCreateInsertsNothing(t *testing.T) {
	tbl := newObjectTable()
	key := &object{name: "boom"}

	func() {
		defer func() { _ = recover() }()
		tbl.GetOrCreate(key, func() *int { panic("create failed") })
	}()

	if tbl.Len() != 0 {
		t.Errorf("expected no entries after panic, got %d", tbl.Len())
	}

	// The shard lock must have been released.
	v, created := tbl.GetOrCreate(key, func() *int { return intPtr(7) })
	if !created || *v != 7 {
		t.Error("expected retry after panic to create the entry")
	}
}

func TestTablePointerStability(t *testing.T) {
	tbl := newObjectTable()
	first := &object{name: "first"}
	p, _ := tbl.GetOrCreate(first, func() *int { return intPtr(-1) })

	for i := range 10000 {
		k := &object{name: strconv.Itoa(i)}
		tbl.GetOrCreate(k, func() *int { return intPtr(i) })
	}

	got, ok := tbl.Get(first)
	if !ok || got != p {
		t.Error("pointer changed after inserting other keys")
	}
	if *p != -1 {
		t.Errorf("value changed: got %d", *p)
	}
	if tbl.Len() != 10001 {
		t.Errorf("expected 10001 entries, got %d", tbl.Len())
	}
}

func TestTableRange(t *testing.T) {
	tbl := newObjectTable()
	for i := range 50 {
		tbl.GetOrCreate(&object{name: strconv.Itoa(i)}, func() *int { return intPtr(i) })
	}

	sum := 0
	tbl.Range(func(_ *object, v *int) bool {
		sum += *v
		return true
	})
	if sum != 49*50/2 {
		t.Errorf("expected sum %d, got %d", 49*50/2, sum)
	}

	visited := 0
	tbl.Range(func(*object, *int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("expected Range to stop after 3, visited %d", visited)
	}
}

func TestTableShardLen(t *testing.T) {
	tbl := newObjectTable()
	for i := range 200 {
		tbl.GetOrCreate(&object{name: strconv.Itoa(i)}, func() *int { return intPtr(i) })
	}

	total := 0
	for _, n := range tbl.ShardLen() {
		total += n
	}
	if total != 200 {
		t.Errorf("expected 200 entries across shards, got %d", total)
	}
}

func TestTableConcurrentSameKey(t *testing.T) {
	tbl := newObjectTable()
	key := &object{name: "shared"}

	var created atomic.Int32
	const goroutines = 64
	results := make([]*int, goroutines)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], _ = tbl.GetOrCreate(key, func() *int {
				created.Add(1)
				return intPtr(i)
			})
		}()
	}
	close(start)
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("expected exactly 1 creation, got %d", created.Load())
	}
	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different pointer", i)
		}
	}
}

func BenchmarkTableGetOrCreateHit(b *testing.B) {
	tbl := newObjectTable()
	key := &object{name: "hot"}
	tbl.GetOrCreate(key, func() *int { return intPtr(1) })

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		tbl.GetOrCreate(key, func() *int { return intPtr(2) })
	}
}
