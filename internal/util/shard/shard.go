// Package shard implementa un map con lock por shard.
//
// Las claves se reparten con xxhash; dos claves distintas nunca comparten
// estado, solo (a veces) el mutex de su shard. Las operaciones sobre una
// misma clave son linealizables.
package shard

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCount es la cantidad de shards si no se indica otra.
const DefaultCount = 32

type bucket[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

// Map es un map[string]V particionado.
type Map[V any] struct {
	buckets []*bucket[V]
}

// New crea un Map con n shards (DefaultCount si n <= 0).
func New[V any](n int) *Map[V] {
	if n <= 0 {
		n = DefaultCount
	}
	out := &Map[V]{buckets: make([]*bucket[V], n)}
	for i := range out.buckets {
		out.buckets[i] = &bucket[V]{m: make(map[string]V)}
	}
	return out
}

func (s *Map[V]) bucketFor(key string) *bucket[V] {
	return s.buckets[xxhash.Sum64String(key)%uint64(len(s.buckets))]
}

// With ejecuta fn con el valor actual de key bajo el lock de su shard.
// Si fn devuelve keep=false la clave se elimina, si no se guarda el valor devuelto.
func (s *Map[V]) With(key string, fn func(cur V, ok bool) (next V, keep bool)) {
	b := s.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.m[key]
	next, keep := fn(cur, ok)
	if keep {
		b.m[key] = next
	} else if ok {
		delete(b.m, key)
	}
}

// Delete elimina key.
func (s *Map[V]) Delete(key string) {
	b := s.bucketFor(key)
	b.mu.Lock()
	delete(b.m, key)
	b.mu.Unlock()
}

// Sweep recorre todos los shards (uno a la vez) y elimina las entradas para
// las que drop devuelve true. Retorna cuántas eliminó.
func (s *Map[V]) Sweep(drop func(key string, v V) bool) int {
	removed := 0
	for _, b := range s.buckets {
		b.mu.Lock()
		for k, v := range b.m {
			if drop(k, v) {
				delete(b.m, k)
				removed++
			}
		}
		b.mu.Unlock()
	}
	return removed
}

// Len retorna la cantidad total de claves (snapshot no atómico entre shards).
func (s *Map[V]) Len() int {
	n := 0
	for _, b := range s.buckets {
		b.mu.Lock()
		n += len(b.m)
		b.mu.Unlock()
	}
	return n
}

// Range llama fn por cada entrada, shard por shard, bajo el lock del shard.
func (s *Map[V]) Range(fn func(key string, v V)) {
	for _, b := range s.buckets {
		b.mu.Lock()
		for k, v := range b.m {
			fn(k, v)
		}
		b.mu.Unlock()
	}
}
