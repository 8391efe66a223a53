package memtable

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"testing"
)

var backends = []Backend{SkipMap, BTree}

func collect[K, V any](scan func(func(K, V) bool)) []K {
	var out []K
	scan(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

// TestMapConformance runs the same checks against every backend.
func TestMapConformance(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			m, err := NewMap[int, string](backend, cmp.Compare[int])
			if err != nil {
				t.Fatalf("NewMap: %v", err)
			}

			rng := rand.New(rand.NewSource(1))
			var keys []int
			for _, k := range rng.Perm(200) {
				k *= 2
				keys = append(keys, k)
				m.Store(k, fmt.Sprint(k))
			}
			slices.Sort(keys)

			t.Run("load", func(t *testing.T) {
				v, ok := m.Load(10)
				if !ok || v != "10" {
					t.Fatalf("Load(10) = %q, %v", v, ok)
				}
				if _, ok := m.Load(11); ok {
					t.Fatalf("Load(11) must miss")
				}
			})

			t.Run("replace", func(t *testing.T) {
				m.Store(10, "ten")
				if v, _ := m.Load(10); v != "ten" {
					t.Fatalf("Load(10) = %q after replace", v)
				}
				if m.Len() != 200 {
					t.Fatalf("Len = %d, want 200", m.Len())
				}
			})

			t.Run("ascend", func(t *testing.T) {
				if got := collect(m.Ascend); !slices.Equal(got, keys) {
					t.Fatalf("ascend order broken")
				}
			})

			t.Run("descend", func(t *testing.T) {
				want := slices.Clone(keys)
				slices.Reverse(want)
				if got := collect(m.Descend); !slices.Equal(got, want) {
					t.Fatalf("descend order broken")
				}
			})

			t.Run("ascend from", func(t *testing.T) {
				got := collect(func(fn func(int, string) bool) { m.AscendFrom(101, fn) })
				if len(got) != 149 || got[0] != 102 {
					t.Fatalf("AscendFrom(101) = %d items starting at %v", len(got), got[:1])
				}
				got = collect(func(fn func(int, string) bool) { m.AscendFrom(100, fn) })
				if got[0] != 100 {
					t.Fatalf("AscendFrom(100) must include the pivot")
				}
			})

			t.Run("descend from", func(t *testing.T) {
				got := collect(func(fn func(int, string) bool) { m.DescendFrom(101, fn) })
				if len(got) != 51 || got[0] != 100 || got[len(got)-1] != 0 {
					t.Fatalf("DescendFrom(101) = %d items", len(got))
				}
			})

			t.Run("early stop", func(t *testing.T) {
				n := 0
				m.Ascend(func(int, string) bool {
					n++
					return n < 3
				})
				if n != 3 {
					t.Fatalf("visited %d, want 3", n)
				}
			})
		})
	}
}

func TestMapConcurrentReaders(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			m, _ := NewMap[int, int](backend, cmp.Compare[int])
			var wg sync.WaitGroup
			stop := make(chan struct{})

			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
						}
						prev := -1
						m.Ascend(func(k, v int) bool {
							if k <= prev || v != k*k {
								t.Errorf("inconsistent scan: %d after %d", k, prev)
								return false
							}
							prev = k
							return true
						})
					}
				}()
			}

			for i := 0; i < 2000; i++ {
				m.Store(i, i*i)
			}
			close(stop)
			wg.Wait()

			if m.Len() != 2000 {
				t.Fatalf("Len = %d", m.Len())
			}
		})
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := NewMap[int, int]("hash", cmp.Compare[int]); err == nil {
		t.Fatalf("expected error")
	}
}
