package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Requires a running memcached, e.g. MEMCACHED_ADDR=localhost:11211.
func newMemcacheTestStore(t *testing.T) Store {
	t.Helper()
	addr := os.Getenv("MEMCACHED_ADDR")
	if addr == "" {
		t.Skip("MEMCACHED_ADDR not set")
	}
	store, err := NewMemcacheStore(addr, time.Second)
	if err != nil {
		t.Fatalf("failed to create memcache store: %v", err)
	}
	return store
}

func TestMemcacheStore(t *testing.T) {
	exerciseStore(t, newMemcacheTestStore(t), "test/"+uuid.NewString())
}

func TestMemcacheStoreVersioned(t *testing.T) {
	exerciseVersioned(t, newMemcacheTestStore(t), "test/"+uuid.NewString())
}

func TestMemcacheStoreIsNotCounter(t *testing.T) {
	var s Store = &memcacheStore{}
	if _, ok := s.(Counter); ok {
		t.Fatal("memcache store must not advertise signed atomic add")
	}
}

// fakeMemcached speaks the subset of the memcached text protocol the store uses:
// version, gets, set and cas.
type fakeMemcached struct {
	ln net.Listener

	mu    sync.Mutex
	items map[string]fakeItem
	cas   uint64
}

type fakeItem struct {
	value []byte
	cas   uint64
}

func newFakeMemcached(t *testing.T) *fakeMemcached {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMemcached{ln: ln, items: make(map[string]fakeItem)}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeMemcached) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMemcached) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		var reply string
		switch fields[0] {
		case "version":
			reply = "VERSION 1.6.21\r\n"
		case "get", "gets":
			reply = f.get(fields[1:])
		case "set", "cas":
			if len(fields) < 5 {
				return
			}
			n, err := strconv.Atoi(fields[4])
			if err != nil {
				return
			}
			data := make([]byte, n+2)
			if _, err := io.ReadFull(r, data); err != nil {
				return
			}
			reply = f.store(fields, data[:n])
		default:
			reply = "ERROR\r\n"
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

func (f *fakeMemcached) get(keys []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for _, k := range keys {
		if it, ok := f.items[k]; ok {
			fmt.Fprintf(&b, "VALUE %s 0 %d %d\r\n%s\r\n", k, len(it.value), it.cas, it.value)
		}
	}
	b.WriteString("END\r\n")
	return b.String()
}

func (f *fakeMemcached) store(fields []string, value []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fields[1]
	if fields[0] == "cas" {
		it, ok := f.items[key]
		if !ok {
			return "NOT_FOUND\r\n"
		}
		if len(fields) < 6 || fields[5] != strconv.FormatUint(it.cas, 10) {
			return "EXISTS\r\n"
		}
	}
	f.cas++
	f.items[key] = fakeItem{value: append([]byte(nil), value...), cas: f.cas}
	return "STORED\r\n"
}

// evict drops key the way memcached does under memory pressure or expiry.
func (f *fakeMemcached) evict(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
}

func newFakeMemcacheStore(t *testing.T) (Store, *fakeMemcached) {
	t.Helper()
	f := newFakeMemcached(t)
	store, err := NewMemcacheStore(f.ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("failed to create memcache store: %v", err)
	}
	return store, f
}

func TestMemcacheStoreAgainstFakeServer(t *testing.T) {
	store, _ := newFakeMemcacheStore(t)
	exerciseStore(t, store, "test/"+uuid.NewString())
	exerciseVersioned(t, store, "test/"+uuid.NewString())
}

func TestMemcacheStoreCASOnEvictedKey(t *testing.T) {
	store, f := newFakeMemcacheStore(t)
	vs := store.(Versioned)
	ctx := context.Background()
	key := "test/" + uuid.NewString()

	if err := store.Set(ctx, key, 100, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, ver, err := vs.GetWithVersion(ctx, key)
	if err != nil {
		t.Fatalf("get with version: %v", err)
	}

	f.evict(key)

	swapped, err := vs.CompareAndSwap(ctx, key, 95, ver)
	if err != nil {
		t.Fatalf("cas on evicted key must report a lost race, got error %v", err)
	}
	if swapped {
		t.Fatal("cas on evicted key must not succeed")
	}
	if _, _, err := vs.GetWithVersion(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after eviction, got %v", err)
	}
}
