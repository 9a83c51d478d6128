package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/forgefit/forge/internal/logging"
	"github.com/forgefit/forge/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// origin is a controllable upstream. In "down" mode connections are dropped;
// in "slow" mode responses arrive after delay.
type origin struct {
	srv   *httptest.Server
	mode  atomic.Value
	delay time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{calls: map[string]int{}, delay: 300 * time.Millisecond}
	o.mode.Store("up")
	o.srv = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) set(mode string) { o.mode.Store(mode) }

func (o *origin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[path]
}

func (o *origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.calls[r.URL.RequestURI()]++
	n := o.calls[r.URL.RequestURI()]
	o.mu.Unlock()

	switch o.mode.Load().(string) {
	case "down":
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("hijack unsupported")
		}
		conn, _, _ := hj.Hijack()
		_ = conn.Close()
		return
	case "slow":
		time.Sleep(o.delay)
	}

	switch r.URL.Path {
	case "/missing.js", "/manifest-broken.json":
		http.NotFound(w, r)
		return
	case "/assets/bundle.js":
		w.Header().Set("Content-Type", "text/javascript")
		_, _ = io.WriteString(w, strings.Repeat("b", bundleSize))
		return
	case "/api/export":
		_, _ = io.WriteString(w, strings.Repeat("e", exportSize))
		return
	case "/api/echo":
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			fmt.Fprintf(w, "posted %s", body)
			return
		}
	}
	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		w.Header().Set("Content-Type", "text/html")
	}
	fmt.Fprintf(w, "%s#%d", r.URL.RequestURI(), n)
}

const (
	bundleSize = 200 << 10
	exportSize = 96 << 10
)

type fixture struct {
	origin  *origin
	router  *Router
	metrics *metrics.Manager
}

func newFixture(t *testing.T, critical ...string) *fixture {
	t.Helper()
	return newFixtureWith(t, func(*Options) {}, critical...)
}

func newFixtureWith(t *testing.T, tune func(*Options), critical ...string) *fixture {
	t.Helper()
	o := newOrigin(t)
	m := metrics.NewTestManager()
	if critical == nil {
		critical = []string{"/", "/index.html", "/manifest.json"}
	}
	opts := Options{
		Upstream:       o.srv.URL,
		NetworkTimeout: 50 * time.Millisecond,
		CriticalPaths:  critical,
		Metrics:        m,
	}
	tune(&opts)
	rt, err := New(opts, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return &fixture{origin: o, router: rt, metrics: m}
}

func (f *fixture) get(t *testing.T, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestNewRejectsBadUpstream(t *testing.T) {
	_, err := New(Options{Upstream: "ftp://example.com"}, logging.Discard())
	assert.Error(t, err)
}

func TestFirstRegistrationActivates(t *testing.T) {
	f := newFixture(t)
	w, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	assert.Equal(t, StateControlling, w.State())
	assert.Equal(t, "static-v1.2.0", w.StaticBucket)
	assert.Equal(t, "runtime-v1.2.0", w.RuntimeBucket)
	assert.Equal(t, 3, f.router.Storage().Len("static-v1.2.0"))
	assert.Equal(t, 0, f.router.Storage().Len("runtime-v1.2.0"))
	assert.Equal(t, "1.2.0", f.router.Registration().Version())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GaugeWorkerState.WithLabelValues("1.2.0", "controlling")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.GaugeWorkerState.WithLabelValues("1.2.0", "installing")))
}

func TestInstallIsAllOrNothing(t *testing.T) {
	f := newFixture(t, "/", "/manifest-broken.json")
	w, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	assert.Equal(t, StateControlling, w.State())
	assert.Equal(t, 0, f.router.Storage().Len("static-v1.2.0"))
}

func TestUpdateWaitsThenReplacesOldBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1, err := f.router.Register(ctx, "1.0.0")
	require.NoError(t, err)
	f.get(t, "/api/v1/workouts")
	require.Equal(t, 1, f.router.Storage().Len("runtime-v1.0.0"))

	v2, err := f.router.Register(ctx, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, v2.State())
	assert.Equal(t, "1.0.0", f.router.Registration().Version())

	status := f.router.Registration().Status()
	require.NotNil(t, status.Waiting)
	assert.Equal(t, "2.0.0", status.Waiting.Version)

	assert.True(t, f.router.Registration().SkipWaiting(ctx))
	assert.Equal(t, StateControlling, v2.State())
	assert.Equal(t, StateRedundant, v1.State())
	assert.Nil(t, f.router.Registration().Waiting())
	assert.Equal(t, []string{"runtime-v2.0.0", "static-v2.0.0"}, f.router.Storage().Names())

	assert.False(t, f.router.Registration().SkipWaiting(ctx))
}

func TestRegisterRequiresVersion(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "")
	assert.Error(t, err)
}

func TestPassthroughWithoutController(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/app.js")
	assert.Equal(t, "/app.js#1", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterPassthrough))
}

func TestPassthroughNonGet(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader("set"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "posted set", rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterPassthrough))
	assert.Equal(t, 0, f.router.Storage().Len("runtime-v1.2.0"))
}

func TestCacheFirstStaticAssets(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	first := f.get(t, "/assets/app.js")
	assert.Equal(t, SourceNetwork, first.Header().Get("X-Forge-Cache"))
	assert.Equal(t, "/assets/app.js#1", first.Body.String())

	second := f.get(t, "/assets/app.js")
	assert.Equal(t, SourceStatic, second.Header().Get("X-Forge-Cache"))
	assert.Equal(t, "/assets/app.js#1", second.Body.String())

	// the hit triggered a background refresh
	f.router.background.Wait()
	assert.Equal(t, 2, f.origin.count("/assets/app.js"))
	third := f.get(t, "/assets/app.js")
	assert.Equal(t, "/assets/app.js#2", third.Body.String())

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterCacheHits.WithLabelValues(SourceStatic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterCacheMisses.WithLabelValues(SourceStatic)))
}

func TestCacheFirstStoresLargeBundles(t *testing.T) {
	f := newFixtureWith(t, func(o *Options) { o.CacheSizeBytes = 64 << 20 })
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	first := f.get(t, "/assets/bundle.js")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, SourceNetwork, first.Header().Get("X-Forge-Cache"))
	assert.Equal(t, bundleSize, first.Body.Len())

	second := f.get(t, "/assets/bundle.js")
	assert.Equal(t, SourceStatic, second.Header().Get("X-Forge-Cache"))
	assert.Equal(t, bundleSize, second.Body.Len())
	f.router.background.Wait()

	f.origin.set("down")
	offline := f.get(t, "/assets/bundle.js")
	assert.Equal(t, http.StatusOK, offline.Code)
	assert.Equal(t, SourceStatic, offline.Header().Get("X-Forge-Cache"))
	assert.Equal(t, bundleSize, offline.Body.Len())
	assert.Equal(t, "text/javascript", offline.Header().Get("Content-Type"))

	_, ok := f.router.Storage().Open("static-v1.2.0").Match("/assets/bundle.js")
	assert.True(t, ok)
	f.router.background.Wait()
}

func TestOversizedResponsesStreamUncached(t *testing.T) {
	f := newFixtureWith(t, func(o *Options) { o.MaxBodyBytes = 64 << 10 })
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	rec := f.get(t, "/api/export")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, exportSize, rec.Body.Len())
	assert.Equal(t, SourceNetwork, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, 0, f.router.Storage().Len("runtime-v1.2.0"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterPassthrough))
}

func TestCacheFirstSkipsErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	rec := f.get(t, "/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, ok := f.router.Storage().Open("static-v1.2.0").Match("/missing.js")
	assert.False(t, ok)
}

func TestCacheFirstRefreshFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)
	f.get(t, "/logo.svg")

	f.origin.set("down")
	rec := f.get(t, "/logo.svg")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/logo.svg#1", rec.Body.String())

	f.router.background.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterRefreshFailures))
}

func TestCacheFirstMissWhileOffline(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)
	f.origin.set("down")

	rec := f.get(t, "/never-seen.css")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNetworkFirstStoresAndFallsBack(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	rec := f.get(t, "/api/v1/workouts?date=2024-03-01")
	assert.Equal(t, SourceNetwork, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, "/api/v1/workouts?date=2024-03-01#1", rec.Body.String())

	f.origin.set("down")
	rec = f.get(t, "/api/v1/workouts?date=2024-03-01")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SourceRuntime, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, "/api/v1/workouts?date=2024-03-01#1", rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterFallbacks.WithLabelValues(SourceRuntime)))
}

func TestNetworkFirstTimeout(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)
	f.get(t, "/api/v1/workouts/stats")

	f.origin.set("slow")
	start := time.Now()
	rec := f.get(t, "/api/v1/workouts/stats")
	assert.Less(t, time.Since(start), f.origin.delay)
	assert.Equal(t, SourceRuntime, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, "/api/v1/workouts/stats#1", rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterNetworkTimeouts))

	// uncached API request times out without a fallback
	rec = f.get(t, "/api/v1/workouts/trend?days=7")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	// the losing fetches still complete
	f.router.background.Wait()
	assert.Equal(t, 1, f.origin.count("/api/v1/workouts/trend?days=7"))
}

func TestNetworkFirstDoesNotCacheErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)

	rec := f.get(t, "/manifest-broken.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, SourceNetwork, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, 0, f.router.Storage().Len("runtime-v1.2.0"))
}

func TestNavigationFallsBackToRoot(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)
	f.origin.set("down")

	tests := []struct {
		name   string
		header []string
	}{
		{"fetch metadata", []string{"Sec-Fetch-Mode", "navigate"}},
		{"accept html", []string{"Accept", "text/html,application/xhtml+xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, "/history", tt.header...)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, SourceRoot, rec.Header().Get("X-Forge-Cache"))
			assert.Equal(t, "/#1", rec.Body.String())
		})
	}

	rec := f.get(t, "/history", "Sec-Fetch-Mode", "cors")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNavigationOfflineWithoutRoot(t *testing.T) {
	f := newFixture(t, []string{}...)
	_, err := f.router.Register(context.Background(), "1.2.0")
	require.NoError(t, err)
	f.origin.set("down")

	rec := f.get(t, "/history", "Sec-Fetch-Mode", "navigate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "App offline")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterFallbacks.WithLabelValues(SourceOffline)))
}

func TestHubMessages(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := f.router.Register(ctx, "1.0.0")
	require.NoError(t, err)

	srv := httptest.NewServer(f.router.Hub())
	defer srv.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, Message{Type: MsgGetVersion}))
	var msg Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, Message{Type: MsgVersion, Version: "1.0.0"}, msg)
	assert.Equal(t, 1, f.router.Hub().Clients())

	_, err = f.router.Register(ctx, "2.0.0")
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, Message{Type: MsgSkipWaiting}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, Message{Type: MsgUpdated, Version: "2.0.0"}, msg)
	assert.Equal(t, "2.0.0", f.router.Registration().Version())
}
