package offline

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketPutMatch(t *testing.T) {
	s := NewStorage(0)
	b := s.Open("static-v1")

	_, ok := b.Match("/app.js")
	assert.False(t, ok)

	resp := &Response{Status: 200, Header: http.Header{"Content-Type": {"text/javascript"}}, Body: []byte("console.log(1)")}
	require.NoError(t, b.Put("/app.js", resp))

	got, ok := b.Match("/app.js")
	require.True(t, ok)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "text/javascript", got.Header.Get("Content-Type"))
	assert.Equal(t, "console.log(1)", string(got.Body))
	assert.Equal(t, 1, s.Len("static-v1"))
}

func TestStorageDeleteBucket(t *testing.T) {
	s := NewStorage(0)
	old := s.Open("static-v1")
	s.Open("runtime-v1")
	require.NoError(t, old.Put("/", &Response{Status: 200, Body: []byte("home")}))

	assert.Equal(t, []string{"runtime-v1", "static-v1"}, s.Names())
	assert.True(t, s.Delete("static-v1"))
	assert.False(t, s.Delete("static-v1"))
	assert.Equal(t, []string{"runtime-v1"}, s.Names())

	_, ok := old.Match("/")
	assert.False(t, ok)
	assert.ErrorIs(t, old.Put("/", &Response{Status: 200}), ErrBucketDeleted)
}

func TestBucketsAreIsolated(t *testing.T) {
	s := NewStorage(0)
	require.NoError(t, s.Open("a").Put("/x", &Response{Status: 200, Body: []byte("a")}))
	_, ok := s.Open("b").Match("/x")
	assert.False(t, ok)
}

func TestResponseWriteStripsHopHeaders(t *testing.T) {
	resp := &Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Connection":     {"keep-alive"},
			"Content-Length": {"999"},
			"Cache-Control":  {"max-age=60"},
		},
		Body: []byte("ok"),
	}
	rec := httptest.NewRecorder()
	resp.Write(rec, SourceRuntime)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Equal(t, "max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, SourceRuntime, rec.Header().Get("X-Forge-Cache"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLargeEntriesUseSideStore(t *testing.T) {
	s := NewStorage(1 * megabyte)
	b := s.Open("static-v1")
	body := bytes.Repeat([]byte("x"), 300<<10)

	require.NoError(t, b.Put("/bundle.js", &Response{Status: 200, Body: body}))
	got, ok := b.Match("/bundle.js")
	require.True(t, ok)
	assert.Equal(t, body, got.Body)
	assert.Equal(t, len(body), s.LargeBytes())
	assert.Equal(t, 1, s.Len("static-v1"))

	// a smaller replacement moves back into the arena
	require.NoError(t, b.Put("/bundle.js", &Response{Status: 200, Body: []byte("small")}))
	got, ok = b.Match("/bundle.js")
	require.True(t, ok)
	assert.Equal(t, "small", string(got.Body))
	assert.Zero(t, s.LargeBytes())
}

func TestLargeEntriesEvictLeastRecentlyUsed(t *testing.T) {
	s := NewStorage(1 * megabyte)
	b := s.Open("static-v1")
	body := bytes.Repeat([]byte("x"), 400<<10)

	require.NoError(t, b.Put("/a.js", &Response{Status: 200, Body: body}))
	require.NoError(t, b.Put("/b.js", &Response{Status: 200, Body: body}))
	_, ok := b.Match("/a.js")
	require.True(t, ok)
	require.NoError(t, b.Put("/c.js", &Response{Status: 200, Body: body}))

	_, ok = b.Match("/b.js")
	assert.False(t, ok)
	_, ok = b.Match("/a.js")
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len("static-v1"))
	assert.Equal(t, 2*len(body), s.LargeBytes())

	assert.Error(t, b.Put("/huge.js", &Response{Status: 200, Body: bytes.Repeat([]byte("x"), 2*megabyte)}))
}

func TestDeleteBucketDropsLargeEntries(t *testing.T) {
	s := NewStorage(1 * megabyte)
	b := s.Open("static-v1")
	require.NoError(t, b.Put("/bundle.js", &Response{Status: 200, Body: bytes.Repeat([]byte("x"), 300<<10)}))

	assert.True(t, s.Delete("static-v1"))
	assert.Zero(t, s.LargeBytes())
	_, ok := b.Match("/bundle.js")
	assert.False(t, ok)
}
