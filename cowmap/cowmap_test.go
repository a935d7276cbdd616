package cowmap

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestMapGetInsert(t *testing.T) {
	assert := assert.New(t)

	var m Map[uint64, string]
	assert.True(m.Empty())
	assert.Equal(0, m.Count(1))

	m = m.Insert(1, "a")
	m = m.Insert(2, "b")

	v, ok := m.Get(1)
	assert.True(ok)
	assert.Equal("a", v)
	assert.Equal(1, m.Count(2))
	assert.Equal(2, m.Len())

	_, ok = m.Get(3)
	assert.False(ok)
}

func TestMapPersistence(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(11))

	var m Map[uint64, int]
	original := make(map[uint64]int)
	for len(original) < 1000 {
		k := rng.Uint64() % 100000
		v := rng.Intn(1 << 30)
		m = m.Insert(k, v)
		original[k] = v
	}

	snapshot := m

	// a second batch of inserts must leave the snapshot untouched
	for i := 0; i < 1000; i++ {
		k := rng.Uint64() % 100000
		m = m.Insert(k, -1)
	}

	assert.Equal(len(original), snapshot.Len())
	for k, v := range original {
		got, ok := snapshot.Get(k)
		assert.True(ok)
		assert.Equal(v, got)
	}
}

func TestMapInsertOverwrite(t *testing.T) {
	assert := assert.New(t)

	var m Map[uint64, int]
	m = m.Insert(5, 1)

	twice := m.Insert(7, 1).Insert(7, 2)
	once := m.Insert(7, 2)

	assert.Equal(once.Len(), twice.Len())

	var gotTwice, gotOnce []uint64
	twice.ForEach(func(k uint64, v int) { gotTwice = append(gotTwice, k, uint64(v)) })
	once.ForEach(func(k uint64, v int) { gotOnce = append(gotOnce, k, uint64(v)) })
	assert.Equal(gotOnce, gotTwice)
}

func TestMapForEachOrder(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(3))

	var m Map[uint64, bool]
	keys := make([]uint64, 0, 100)
	seen := make(map[uint64]bool)
	for len(keys) < 100 {
		k := rng.Uint64() % 10000
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		m = m.Insert(k, true)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var visited []uint64
	m.ForEach(func(k uint64, _ bool) { visited = append(visited, k) })
	assert.Equal(keys, visited)
}
