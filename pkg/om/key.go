package om

import (
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

// KeyTable holds key records by volume, bucket and key name. Records are
// copied on the way in and out.
type KeyTable struct {
	mu   sync.RWMutex
	keys map[string]*types.KeyInfo
}

// NewKeyTable creates an empty key table
func NewKeyTable() *KeyTable {
	return &KeyTable{keys: make(map[string]*types.KeyInfo)}
}

func keyPath(volume, bucket, key string) string {
	return bucketKey(volume, bucket) + "/" + key
}

// Get returns a key record
func (t *KeyTable) Get(volume, bucket, key string) (*types.KeyInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	k, ok := t.keys[keyPath(volume, bucket, key)]
	if !ok {
		return nil, errdefs.NotFound("key not found: %s", keyPath(volume, bucket, key))
	}
	return k.Copy(), nil
}

// Put stores a key record, replacing any previous one
func (t *KeyTable) Put(k *types.KeyInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys[keyPath(k.Volume, k.Bucket, k.Name)] = k.Copy()
}

// Delete removes a key record
func (t *KeyTable) Delete(volume, bucket, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := keyPath(volume, bucket, key)
	if _, ok := t.keys[path]; !ok {
		return errdefs.NotFound("key not found: %s", path)
	}
	delete(t.keys, path)
	return nil
}

// List returns the keys of a bucket whose name starts with prefix, ordered
// by name
func (t *KeyTable) List(volume, bucket, prefix string) []*types.KeyInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var list []*types.KeyInfo
	for _, k := range t.keys {
		if k.Volume == volume && k.Bucket == bucket && strings.HasPrefix(k.Name, prefix) {
			list = append(list, k.Copy())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Count returns the number of keys in a bucket
func (t *KeyTable) Count(volume, bucket string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, k := range t.keys {
		if k.Volume == volume && k.Bucket == bucket {
			n++
		}
	}
	return n
}
