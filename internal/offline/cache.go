package offline

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/coocood/freecache"
)

const megabyte = 1024 * 1024

// ErrBucketDeleted is returned when writing to a bucket removed by activation.
var ErrBucketDeleted = errors.New("cache bucket was deleted")

// hop-by-hop headers are never stored or replayed
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Response is a fully buffered upstream response.
type Response struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Write replays the response. source is reported in X-Forge-Cache.
func (r *Response) Write(w http.ResponseWriter, source string) {
	h := w.Header()
	for k, vs := range r.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
	h.Del("Content-Length")
	h.Set("X-Forge-Cache", source)
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// Storage holds named cache buckets in a single freecache arena. Entries
// freecache refuses as too large (over 1/1024 of the arena) go to a
// least-recently-used side store bounded by the same byte size, so Storage
// may hold up to twice sizeBytes.
type Storage struct {
	cache *freecache.Cache

	mu      sync.Mutex
	buckets map[string]map[string]struct{}

	large       map[string]*list.Element
	lru         *list.List
	largeBytes  int
	largeBudget int
}

// largeEntry is a side store entry; lru elements hold *largeEntry.
type largeEntry struct {
	bucket string
	key    string
	resp   *Response
	size   int
}

func NewStorage(sizeBytes int) *Storage {
	if sizeBytes <= 0 {
		sizeBytes = 64 * megabyte
	}
	return &Storage{
		cache:       freecache.NewCache(sizeBytes),
		buckets:     make(map[string]map[string]struct{}),
		large:       make(map[string]*list.Element),
		lru:         list.New(),
		largeBudget: sizeBytes,
	}
}

// Open returns the named bucket, creating it if needed.
func (s *Storage) Open(name string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = make(map[string]struct{})
	}
	return &Bucket{storage: s, name: name}
}

// Names lists the existing buckets, sorted.
func (s *Storage) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.buckets))
	for n := range s.buckets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Delete drops a bucket and its entries.
func (s *Storage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.buckets[name]
	if !ok {
		return false
	}
	for k := range keys {
		s.cache.Del(entryKey(name, k))
		s.removeLarge(string(entryKey(name, k)))
	}
	delete(s.buckets, name)
	return true
}

// LargeBytes returns the body bytes held by the side store.
func (s *Storage) LargeBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.largeBytes
}

// putLarge stores resp in the side store, evicting the least recently used
// entries to stay within budget. Callers hold s.mu.
func (s *Storage) putLarge(bucket, key string, resp *Response) error {
	size := len(resp.Body)
	if size > s.largeBudget {
		return fmt.Errorf("caching %s in %s: %d byte body exceeds cache size %d", key, bucket, size, s.largeBudget)
	}
	id := string(entryKey(bucket, key))
	s.removeLarge(id)
	for s.largeBytes+size > s.largeBudget {
		oldest := s.lru.Back().Value.(*largeEntry)
		s.removeLarge(string(entryKey(oldest.bucket, oldest.key)))
		if keys, ok := s.buckets[oldest.bucket]; ok {
			delete(keys, oldest.key)
		}
	}
	s.large[id] = s.lru.PushFront(&largeEntry{bucket: bucket, key: key, resp: resp, size: size})
	s.largeBytes += size
	return nil
}

// matchLarge looks up the side store and marks the entry recently used.
// Callers hold s.mu.
func (s *Storage) matchLarge(bucket, key string) (*Response, bool) {
	el, ok := s.large[string(entryKey(bucket, key))]
	if !ok {
		return nil, false
	}
	s.lru.MoveToFront(el)
	resp := *el.Value.(*largeEntry).resp
	return &resp, true
}

// removeLarge drops id from the side store. Callers hold s.mu.
func (s *Storage) removeLarge(id string) {
	el, ok := s.large[id]
	if !ok {
		return
	}
	s.largeBytes -= el.Value.(*largeEntry).size
	s.lru.Remove(el)
	delete(s.large, id)
}

// Len returns the number of entries indexed in a bucket.
func (s *Storage) Len(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets[name])
}

func entryKey(bucket, key string) []byte {
	return []byte(bucket + "\x00" + key)
}

// Bucket is a named view over Storage.
type Bucket struct {
	storage *Storage
	name    string
}

func (b *Bucket) Name() string {
	return b.name
}

// Match returns the response stored under key.
func (b *Bucket) Match(key string) (*Response, bool) {
	b.storage.mu.Lock()
	resp, ok := b.storage.matchLarge(b.name, key)
	b.storage.mu.Unlock()
	if ok {
		return resp, true
	}

	data, err := b.storage.cache.Get(entryKey(b.name, key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			b.forget(key)
		}
		return nil, false
	}
	var stored Response
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false
	}
	return &stored, true
}

// Put stores resp under key.
func (b *Bucket) Put(key string, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	s := b.storage
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.buckets[b.name]
	if !ok {
		return ErrBucketDeleted
	}
	err = s.cache.Set(entryKey(b.name, key), data, 0)
	switch {
	case errors.Is(err, freecache.ErrLargeEntry):
		s.cache.Del(entryKey(b.name, key))
		if err := s.putLarge(b.name, key, resp); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("caching %s in %s: %w", key, b.name, err)
	default:
		s.removeLarge(string(entryKey(b.name, key)))
	}
	keys[key] = struct{}{}
	return nil
}

func (b *Bucket) forget(key string) {
	s := b.storage
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys, ok := s.buckets[b.name]; ok {
		delete(keys, key)
	}
}
