package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/forgefit/forge/internal/metrics"
)

// staticAssetRe selects the cache-first strategy.
var staticAssetRe = regexp.MustCompile(`\.(js|css|png|jpg|jpeg|gif|svg|ico|woff|woff2)$`)

var errNetworkTimeout = errors.New("network timeout")

// X-Forge-Cache values.
const (
	SourceNetwork  = "network"
	SourceStatic   = "static"
	SourceRuntime  = "runtime"
	SourceRoot     = "root"
	SourceOffline  = "offline"
	fetchTimeout   = 30 * time.Second
	defaultTimeout = 3 * time.Second
)

// Options configures a Router.
type Options struct {
	Upstream       string
	NetworkTimeout time.Duration
	CriticalPaths  []string
	CacheSizeBytes int
	// MaxBodyBytes bounds buffered responses; larger ones bypass the cache.
	MaxBodyBytes int64
	Metrics      *metrics.Manager
}

// Router is an offline-first caching reverse proxy. GET requests are served
// by the controlling worker's strategies; everything else goes straight to
// the origin.
type Router struct {
	reg     *Registration
	hub     *Hub
	storage *Storage
	up      *upstream
	proxy   *httputil.ReverseProxy
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Manager

	// background holds fetches that outlive their request: cache-first
	// refreshes and network-first fetches that lost the race.
	background sync.WaitGroup
}

func New(opts Options, log *slog.Logger) (*Router, error) {
	base, err := url.Parse(opts.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream %q must be an http or https URL", opts.Upstream)
	}
	timeout := opts.NetworkTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	storage := NewStorage(opts.CacheSizeBytes)
	up := newUpstream(base, fetchTimeout, opts.MaxBodyBytes, opts.Metrics)
	reg := newRegistration(storage, up, opts.CriticalPaths, log, opts.Metrics)
	hub := NewHub(reg, log, opts.Metrics)
	reg.setBroadcaster(hub)

	proxy := httputil.NewSingleHostReverseProxy(base)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("passthrough failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}

	return &Router{
		reg:     reg,
		hub:     hub,
		storage: storage,
		up:      up,
		proxy:   proxy,
		timeout: timeout,
		log:     log,
		metrics: opts.Metrics,
	}, nil
}

// Register installs a worker version; see Registration.Register.
func (rt *Router) Register(ctx context.Context, version string) (*Worker, error) {
	return rt.reg.Register(ctx, version)
}

func (rt *Router) Registration() *Registration {
	return rt.reg
}

// Hub returns the page message channel, served on /sw.
func (rt *Router) Hub() *Hub {
	return rt.hub
}

func (rt *Router) Storage() *Storage {
	return rt.storage
}

// Close disconnects pages and waits for background fetches.
func (rt *Router) Close() {
	rt.hub.Close()
	rt.background.Wait()
	rt.up.close()
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	worker := rt.reg.Active()
	if worker == nil || r.Method != http.MethodGet || isUpgrade(r) {
		rt.passthrough(w, r)
		return
	}

	if staticAssetRe.MatchString(r.URL.Path) {
		rt.cacheFirst(w, r, worker)
		return
	}
	rt.networkFirst(w, r, worker)
}

func (rt *Router) passthrough(w http.ResponseWriter, r *http.Request) {
	if rt.metrics != nil {
		rt.metrics.CounterPassthrough.Inc()
	}
	rt.proxy.ServeHTTP(w, r)
}

// cacheFirst answers from the static bucket and refreshes the entry in the
// background. On a miss it fetches and stores successful responses.
func (rt *Router) cacheFirst(w http.ResponseWriter, r *http.Request, worker *Worker) {
	bucket := rt.storage.Open(worker.StaticBucket)
	key := cacheKey(r)

	if cached, ok := bucket.Match(key); ok {
		rt.hit(SourceStatic)
		rt.refresh(r, bucket, key)
		cached.Write(w, SourceStatic)
		return
	}
	rt.miss(SourceStatic)

	resp, err := rt.up.fetch(r.Context(), key, r.Header)
	if errors.Is(err, ErrResponseTooLarge) {
		rt.streamLarge(w, r)
		return
	}
	if err != nil {
		rt.log.Error("fetch failed", "path", r.URL.Path, "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	if resp.OK() {
		rt.store(bucket, key, resp)
	}
	resp.Write(w, SourceNetwork)
}

// refresh updates key in the background. Failures are counted and dropped.
func (rt *Router) refresh(r *http.Request, bucket *Bucket, key string) {
	header := r.Header.Clone()
	ctx := context.WithoutCancel(r.Context())
	rt.background.Add(1)
	go func() {
		defer rt.background.Done()
		resp, err := rt.up.fetch(ctx, key, header)
		if err != nil || !resp.OK() {
			if rt.metrics != nil {
				rt.metrics.CounterRefreshFailures.Inc()
			}
			return
		}
		if err := bucket.Put(key, resp); err != nil && !errors.Is(err, ErrBucketDeleted) {
			rt.log.Debug("background refresh not cached", "key", key, "error", err)
		}
	}()
}

type fetchResult struct {
	resp *Response
	err  error
}

// networkFirst races the origin against the network timeout. The losing fetch
// is left to finish on its own.
func (rt *Router) networkFirst(w http.ResponseWriter, r *http.Request, worker *Worker) {
	bucket := rt.storage.Open(worker.RuntimeBucket)
	key := cacheKey(r)
	header := r.Header.Clone()
	ctx := context.WithoutCancel(r.Context())

	results := make(chan fetchResult, 1)
	rt.background.Add(1)
	go func() {
		defer rt.background.Done()
		resp, err := rt.up.fetch(ctx, key, header)
		results <- fetchResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(rt.timeout)
	defer timer.Stop()

	var cause error
	select {
	case res := <-results:
		if res.err == nil {
			if res.resp.OK() {
				rt.store(bucket, key, res.resp)
			}
			res.resp.Write(w, SourceNetwork)
			return
		}
		if errors.Is(res.err, ErrResponseTooLarge) {
			rt.streamLarge(w, r)
			return
		}
		cause = res.err
	case <-timer.C:
		if rt.metrics != nil {
			rt.metrics.CounterNetworkTimeouts.Inc()
		}
		cause = errNetworkTimeout
	case <-r.Context().Done():
		return
	}

	rt.log.Info("network failed, trying cache", "path", r.URL.Path, "error", cause)
	rt.fallback(w, r, worker, bucket, key, cause)
}

// fallback serves the runtime copy, then the cached root for navigations,
// then a 503 "App offline". Other requests surface the failure.
func (rt *Router) fallback(w http.ResponseWriter, r *http.Request, worker *Worker, runtime *Bucket, key string, cause error) {
	if cached, ok := runtime.Match(key); ok {
		rt.hit(SourceRuntime)
		rt.fellBack(SourceRuntime)
		cached.Write(w, SourceRuntime)
		return
	}
	rt.miss(SourceRuntime)

	if isNavigation(r) {
		if root, ok := rt.storage.Open(worker.StaticBucket).Match("/"); ok {
			rt.fellBack(SourceRoot)
			root.Write(w, SourceRoot)
			return
		}
		rt.fellBack(SourceOffline)
		w.Header().Set("X-Forge-Cache", SourceOffline)
		http.Error(w, "App offline", http.StatusServiceUnavailable)
		return
	}

	rt.fellBack("error")
	if errors.Is(cause, errNetworkTimeout) {
		http.Error(w, "Network timeout", http.StatusGatewayTimeout)
		return
	}
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

// streamLarge proxies a response too large to buffer without caching it.
func (rt *Router) streamLarge(w http.ResponseWriter, r *http.Request) {
	rt.log.Info("response too large to cache, streaming", "path", r.URL.Path)
	w.Header().Set("X-Forge-Cache", SourceNetwork)
	rt.passthrough(w, r)
}

func (rt *Router) store(bucket *Bucket, key string, resp *Response) {
	if err := bucket.Put(key, resp); err != nil && !errors.Is(err, ErrBucketDeleted) {
		rt.log.Warn("response not cached", "key", key, "error", err)
	}
}

func (rt *Router) hit(bucket string) {
	if rt.metrics != nil {
		rt.metrics.CounterCacheHits.WithLabelValues(bucket).Inc()
	}
}

func (rt *Router) miss(bucket string) {
	if rt.metrics != nil {
		rt.metrics.CounterCacheMisses.WithLabelValues(bucket).Inc()
	}
}

func (rt *Router) fellBack(kind string) {
	if rt.metrics != nil {
		rt.metrics.CounterFallbacks.WithLabelValues(kind).Inc()
	}
}

// cacheKey identifies a request by path and query.
func cacheKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.EscapedPath()
	}
	return r.URL.EscapedPath() + "?" + r.URL.RawQuery
}

// isNavigation reports a top-level page load.
func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != ""
}
