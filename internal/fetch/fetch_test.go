package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/history"
	"github.com/roach88/reactor/internal/reactive"
	"github.com/roach88/reactor/internal/store"
	"github.com/roach88/reactor/internal/testutil"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func jsonHandler(t *testing.T, body string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func newClient(srv *httptest.Server, host store.Host) *Client {
	return NewClient(srv.Client(), host, WithBaseURL(srv.URL), WithNow(func() time.Time { return fixedNow }))
}

func TestPrefetch_NoTransport(t *testing.T) {
	c := NewClient(nil, store.NewRegistry())
	_, err := c.Prefetch("/x", map[string]any{}, Request{})
	assert.ErrorIs(t, err, ErrNoTransport)

	var nilClient *Client
	_, err = nilClient.Fetch(context.Background(), "/x", map[string]any{}, Request{})
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestPrefetch_SharedInstanceAndInitialStatus(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `{}`))
	defer srv.Close()
	c := newClient(srv, store.NewRegistry())

	a, err := c.Prefetch("/users", map[string]any{"name": ""}, Request{})
	require.NoError(t, err)
	b, err := c.Prefetch("users", map[string]any{"name": "other"}, Request{CachePeriod: time.Minute})
	require.NoError(t, err)
	assert.Same(t, a, b, "cache options are not part of the key")
	assert.Equal(t, srv.URL+"/users", a.URL())

	st := a.Status()
	assert.Equal(t, 200, st.Code)
	assert.Equal(t, "Ok", st.Text)
	assert.Equal(t, fixedNow, st.FinishedAt)

	obj := a.Value().(*reactive.Object)
	assert.Equal(t, int64(200), obj.Get(reactive.MetaStatus))
	assert.Equal(t, "2026-10-18T12:00:00Z", obj.Get(reactive.MetaFinishedAt))
	assert.Equal(t, "", obj.Get("name"))

	other, err := c.Prefetch("/users", map[string]any{}, Request{Method: "post"})
	require.NoError(t, err)
	assert.NotSame(t, a, other, "method is part of the key")
}

func TestFetch_MergesRecordResponse(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `{"name":"ada","langs":["en","fr"]}`))
	defer srv.Close()
	c := newClient(srv, store.NewRegistry())

	res, err := c.Fetch(context.Background(), "/me", map[string]any{"name": "", "stale": true}, Request{})
	require.NoError(t, err)

	obj := res.Value().(*reactive.Object)
	assert.Equal(t, "ada", obj.Get("name"))
	assert.False(t, obj.Has("stale"), "fields missing from the response are removed")
	assert.Equal(t, []any{"en", "fr"}, reactive.Snapshot(obj.Get("langs")))

	st := res.Status()
	assert.Equal(t, 200, st.Code)
	assert.Equal(t, "OK", st.Text)
	assert.NoError(t, st.Err)
	require.NotNil(t, st.Response)
	assert.Equal(t, "application/json", st.Response.Header.Get("Content-Type"))
	assert.Equal(t, int64(200), obj.Get(reactive.MetaStatus))
	assert.Nil(t, obj.Get(reactive.MetaError))
	assert.Equal(t, map[string]any{"url": srv.URL + "/me", "options": map[string]any{}}, reactive.Snapshot(obj.Get(reactive.MetaRequest)))
	assert.Equal(t, "GET", st.Request.Method, "the method is still defaulted on the wire")
	assert.Empty(t, st.Request.Options)
}

func TestFetch_MergesSequenceResponse(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `[1,2,3]`))
	defer srv.Close()
	c := newClient(srv, nil)

	res, err := c.Fetch(context.Background(), "/numbers", []any{9}, Request{})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, res.Value().Snapshot())
	assert.Equal(t, 200, res.Status().Code)
}

func TestFetch_ErrorOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		init     any
		wantCode int
		wantText string
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusNotFound)
			},
			init:     map[string]any{},
			wantCode: 404,
			wantText: "Not Found",
		},
		{
			name:     "malformed json",
			handler:  jsonHandler(t, `{"a":`),
			init:     map[string]any{},
			wantCode: 500,
		},
		{
			name:     "shape mismatch",
			handler:  jsonHandler(t, `{"a":1}`),
			init:     []any{},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := newClient(srv, store.NewRegistry())

			res, err := c.Fetch(context.Background(), "/x", tt.init, Request{})
			require.NoError(t, err, "request failures are reported on the resource")

			st := res.Status()
			assert.Equal(t, tt.wantCode, st.Code)
			assert.Error(t, st.Err)
			assert.Equal(t, fixedNow, st.FinishedAt)
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, st.Text)
			}
		})
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	c := NewClient(doer, store.NewRegistry(), WithBaseURL("http://example.invalid"))

	res, err := c.Fetch(context.Background(), "/x", map[string]any{}, Request{})
	require.NoError(t, err)
	st := res.Status()
	assert.Equal(t, 500, st.Code)
	assert.Contains(t, st.Text, "connection refused")
	obj := res.Value().(*reactive.Object)
	assert.Contains(t, obj.Get(reactive.MetaError), "connection refused")
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestFetch_CachePolicy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"n":1}`)
	}))
	defer srv.Close()

	now := fixedNow
	c := NewClient(srv.Client(), store.NewRegistry(), WithBaseURL(srv.URL), WithNow(func() time.Time { return now }))
	ctx := context.Background()

	// A prefetched instance counts as completed.
	_, err := c.Prefetch("/n", map[string]any{}, Request{})
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "/n", map[string]any{}, Request{CachePeriod: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int32(0), hits.Load())

	now = now.Add(time.Minute)
	_, err = c.Fetch(ctx, "/n", map[string]any{}, Request{CachePeriod: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "elapsed cache period refreshes")

	// Completion released the key, so the next Fetch starts fresh.
	_, err = c.Fetch(ctx, "/n", map[string]any{}, Request{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	_, err = c.Prefetch("/n", map[string]any{}, Request{})
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "/n", map[string]any{}, Request{Cache: CacheReload})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load(), "reload always refreshes")
}

func TestRefresh_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		entered <- struct{}{}
		<-release
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()
	c := newClient(srv, store.NewRegistry())

	res, err := c.Prefetch("/slow", map[string]any{}, Request{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, res.Refresh(context.Background(), nil, true))
	}()
	<-entered

	assert.NoError(t, res.Refresh(context.Background(), nil, true), "second refresh is skipped")
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, true, res.Value().(*reactive.Object).Get("ok"))
}

func TestRefresh_WithoutUpdateKeepsData(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `{"n":2}`))
	defer srv.Close()
	c := newClient(srv, store.NewRegistry())

	res, err := c.Prefetch("/n", map[string]any{"n": 1}, Request{})
	require.NoError(t, err)
	require.NoError(t, res.Refresh(context.Background(), &Request{Header: map[string]string{"X-Trace": "1"}}, false))

	obj := res.Value().(*reactive.Object)
	assert.Equal(t, int64(1), obj.Get("n"))
	assert.Equal(t, 200, res.Status().Code)
	assert.Equal(t, "1", res.Status().Request.Header["X-Trace"])
}

func TestPush_DefaultsToPostingInitialValue(t *testing.T) {
	type seen struct {
		method, contentType string
		body                map[string]any
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- seen{r.Method, r.Header.Get("Content-Type"), body}
		_, _ = io.WriteString(w, `{"id":7,"title":"x"}`)
	}))
	defer srv.Close()
	c := newClient(srv, store.NewRegistry())

	res, err := c.Prefetch("/items", map[string]any{"title": "x"}, Request{})
	require.NoError(t, err)
	require.NoError(t, res.Push(context.Background(), nil, true))

	s := <-got
	assert.Equal(t, http.MethodPost, s.method)
	assert.Equal(t, "application/json", s.contentType)
	assert.Equal(t, map[string]any{"title": "x"}, s.body)
	assert.Equal(t, int64(7), res.Value().(*reactive.Object).Get("id"))

	// An explicit method and body win.
	res2, err := c.Prefetch("/items", map[string]any{"title": "x"}, Request{})
	require.NoError(t, err)
	require.NoError(t, res2.Push(context.Background(), &Request{Method: http.MethodPut, Body: `{"title":"y"}`}, false))
	s = <-got
	assert.Equal(t, http.MethodPut, s.method)
	assert.Equal(t, map[string]any{"title": "y"}, s.body)
}

func TestFetch_MetadataIsNotHistory(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `{"name":"ada"}`))
	defer srv.Close()
	c := newClient(srv, store.NewRegistry())

	res, err := c.Prefetch("/me", map[string]any{"name": ""}, Request{})
	require.NoError(t, err)

	sched := testutil.NewManualScheduler()
	h := history.Watch(res.Value(), history.WithScheduler(sched))
	defer h.Forget()

	require.NoError(t, res.Refresh(context.Background(), nil, true))
	sched.Advance(time.Hour)

	stack := h.UndoStack()
	require.Len(t, stack, 1, "only the data change is recorded")
	assert.Equal(t, "name", stack[0].Path)
}

func TestFetch_PersistentHost(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `{"title":"fresh"}`))
	defer srv.Close()

	ch := testutil.NewRecordingChannel("reactor", "")
	host := store.NewPersistent(context.Background(), nil, store.WithChannel(ch))
	c := newClient(srv, host)

	res, err := c.Fetch(context.Background(), "/doc", map[string]any{"title": ""}, Request{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.Value().(*reactive.Object).Get("title"))

	posts := ch.Posts()
	require.Len(t, posts, 1, "metadata writes are not broadcast")
	msg, err := store.DecodeMessage(posts[0])
	require.NoError(t, err)
	assert.Equal(t, "title", msg.Path)
	assert.Equal(t, "fresh", msg.Value)
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, target, want string
		wantErr            bool
	}{
		{"https://api.test/v1/", "/users?x=1", "https://api.test/v1/users?x=1", false},
		{"https://api.test/v1", "users", "https://api.test/v1/users", false},
		{"https://api.test", "https://other.test/a", "https://other.test/a", false},
		{"https://api.test/v1/", "  ", "https://api.test/v1", false},
		{"", "/local", "/local", false},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.base+"|"+tt.target, func(t *testing.T) {
			got, err := resolveURL(tt.base, tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestKey_IgnoresCacheOptions(t *testing.T) {
	a, err := requestKey("https://x.test/a", Request{Method: "get", Cache: CacheReload, CachePeriod: time.Hour, Shallow: true})
	require.NoError(t, err)
	b, err := requestKey("https://x.test/a", Request{Method: "GET"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"options":{"method":"GET"},"url":"https://x.test/a"}`, a)
}

func TestNewHTTPClient_NegotiatesHTTP2(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"proto":`+jsonString(r.Proto)+`}`)
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	client, err := NewHTTPClient(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, 5*time.Second)
	require.NoError(t, err)

	c := NewClient(client, nil, WithBaseURL(srv.URL))
	res, err := c.Fetch(context.Background(), "/", map[string]any{}, Request{})
	require.NoError(t, err)
	require.NoError(t, res.Status().Err)
	assert.Equal(t, "HTTP/2.0", res.Value().(*reactive.Object).Get("proto"))
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
