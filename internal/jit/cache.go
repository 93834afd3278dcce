package jit

import (
	"hash/fnv"
	"sync"

	"github.com/google/btree"
	"github.com/tangzhangming/bf/internal/optimizer"
)

// cacheEntry is the btree item: ordered by Hash so lookups and inserts
// are O(log n), the same data structure launix-de-memcp's storage layer
// uses for its own ordered indexes.
type cacheEntry struct {
	Hash    uint64
	Program *CompiledProgram
}

func (e cacheEntry) Less(other btree.Item) bool {
	return e.Hash < other.(cacheEntry).Hash
}

// Cache is an in-process, in-memory compiled-code cache keyed by a hash
// of the optimized-IR sequence. It deliberately does not persist across
// process restarts (spec.md's Non-goal of persisting compiled code).
type Cache struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{tree: btree.New(32)}
}

// HashOps computes the cache key for a sequence of optimized ops.
func HashOps(ops []optimizer.Op) uint64 {
	h := fnv.New64a()
	for _, op := range ops {
		h.Write([]byte{byte(op.Kind), byte(op.Inner.Kind)})
		writeInt64(h, op.Inner.Arg)
		writeInt64(h, op.Offset)
		writeInt64(h, op.Scale)
	}
	return h.Sum64()
}

func writeInt64(h interface{ Write([]byte) (int, error) }, v int64) {
	var b [8]byte
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	h.Write(b[:])
}

// Get returns the cached program for hash, if any.
func (c *Cache) Get(hash uint64) (*CompiledProgram, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.tree.Get(cacheEntry{Hash: hash})
	if item == nil {
		return nil, false
	}
	return item.(cacheEntry).Program, true
}

// Put stores prog under hash, replacing (and releasing) whatever was
// cached there before.
func (c *Cache) Put(hash uint64, prog *CompiledProgram) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old := c.tree.ReplaceOrInsert(cacheEntry{Hash: hash, Program: prog}); old != nil {
		old.(cacheEntry).Program.Release()
	}
}
