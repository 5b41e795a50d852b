package request

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/evelib/cache"
	"github.com/briangreenhill/evelib/serializer"
)

const testBase = "https://api.example.test"

type doc struct {
	XMLName xml.Name `xml:"doc"`
	Value   string   `xml:"value"`
	Until   string   `xml:"until"`
}

func (d doc) CachedUntil() time.Time {
	t, err := time.Parse(time.RFC3339, d.Until)
	if err != nil {
		return serializer.Expired
	}
	return t
}

func docBody(value string, until time.Time) []byte {
	return []byte(fmt.Sprintf("<doc><value>%s</value><until>%s</until></doc>", value, until.UTC().Format(time.RFC3339)))
}

// fakeAPI counts fetches and answers with whatever respond returns.
type fakeAPI struct {
	calls   atomic.Int32
	mu      sync.Mutex
	uris    []string
	respond func(n int) ([]byte, error)
}

func (f *fakeAPI) Fetch(_ context.Context, uri string) ([]byte, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	f.uris = append(f.uris, uri)
	f.mu.Unlock()
	return f.respond(n)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyStore fails Get or Put on demand.
type flakyStore struct {
	*cache.MemoryStore
	getErr error
	putErr error
}

func (s *flakyStore) Get(ctx context.Context, key string) (*cache.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key string, e *cache.Entry) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, e)
}

var t0 = time.Date(2015, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, api Executor, store cache.Store, clock *testClock, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	if store != nil {
		opts = append(opts, WithStore(store))
	}
	p, err := New(testBase, api, opts...)
	require.NoError(t, err)
	return p
}

var statusReq = Request{Path: "/server/ServerStatus.xml.aspx"}

func TestFetchServesValidEntryUntilExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(n int) ([]byte, error) {
		if n == 1 {
			return docBody("first", t0.Add(60*time.Second)), nil
		}
		return docBody("second", t0.Add(10*time.Minute)), nil
	}}
	p := newTestPipeline(t, api, store, clock)
	s := serializer.NewXML[doc]()

	v, err := Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	assert.Equal(t, "first", v.Value)
	assert.EqualValues(t, 1, api.calls.Load())

	clock.Advance(30 * time.Second)
	v, err = Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	assert.Equal(t, "first", v.Value)
	assert.EqualValues(t, 1, api.calls.Load(), "valid entry must not hit the network")

	clock.Advance(31 * time.Second)
	v, err = Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	assert.Equal(t, "second", v.Value)
	assert.EqualValues(t, 2, api.calls.Load())

	key, err := p.Resolve(statusReq)
	require.NoError(t, err)
	entry, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, entry.ValidUntil.Equal(t0.Add(10*time.Minute)))
	assert.Equal(t, docBody("second", t0.Add(10*time.Minute)), entry.Body)
	assert.True(t, entry.FetchedAt.Equal(t0.Add(61*time.Second)))
}

func TestFetchEntryIsStaleAtValidUntil(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("v", t0.Add(time.Minute)), nil
	}}
	p := newTestPipeline(t, api, cache.NewMemoryStore(), clock)
	s := serializer.NewXML[doc]()

	_, err := Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)

	clock.Advance(time.Minute - time.Nanosecond)
	_, err = Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.calls.Load())

	clock.Advance(time.Nanosecond)
	_, err = Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	assert.EqualValues(t, 2, api.calls.Load(), "now == validUntil is stale")
}

func TestFetchIdempotentReads(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	api := &fakeAPI{respond: func(n int) ([]byte, error) {
		return docBody(fmt.Sprintf("v%d", n), t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, cache.NewMemoryStore(), clock)
	s := serializer.NewXML[doc]()

	for i := 0; i < 3; i++ {
		v, err := Fetch(ctx, p, s, statusReq)
		require.NoError(t, err)
		assert.Equal(t, "v1", v.Value)
		clock.Advance(time.Minute)
	}
	assert.EqualValues(t, 1, api.calls.Load())
}

func TestFetchReadBypassAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(n int) ([]byte, error) {
		return docBody(fmt.Sprintf("v%d", n), t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, store, clock)
	p.SetCacheRead(false)
	s := serializer.NewXML[doc]()

	for i := 1; i <= 3; i++ {
		v, err := Fetch(ctx, p, s, statusReq)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("v%d", i), v.Value)
	}
	assert.EqualValues(t, 3, api.calls.Load())

	key, _ := p.Resolve(statusReq)
	entry, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, docBody("v3", t0.Add(time.Hour)), entry.Body, "read bypass still writes")

	p.SetCacheRead(true)
	v, err := Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	assert.Equal(t, "v3", v.Value)
	assert.EqualValues(t, 3, api.calls.Load())
}

func TestFetchWriteBypassLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("v", t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, store, clock)
	p.SetCacheWrite(false)
	s := serializer.NewXML[doc]()

	_, err := Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)
	_, err = Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)

	assert.Equal(t, 0, store.Len())
	assert.EqualValues(t, 2, api.calls.Load())
}

func TestFetchWriteFailureStillReturnsValue(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := &flakyStore{MemoryStore: cache.NewMemoryStore(), putErr: errors.New("disk full")}
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("v", t0.Add(time.Hour)), nil
	}}

	var reported []*CacheError
	p := newTestPipeline(t, api, store, clock, WithCacheErrorHandler(func(_ context.Context, err *CacheError) {
		reported = append(reported, err)
	}))

	v, err := Fetch(ctx, p, serializer.NewXML[doc](), statusReq)
	require.NoError(t, err)
	assert.Equal(t, "v", v.Value)

	require.Len(t, reported, 1)
	assert.Equal(t, "put", reported[0].Op)
	assert.EqualError(t, reported[0].Err, "disk full")
	assert.Equal(t, 0, store.Len())
}

func TestFetchStrictCacheReturnsWriteFailure(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := &flakyStore{MemoryStore: cache.NewMemoryStore(), putErr: errors.New("disk full")}
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("v", t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, store, clock, WithStrictCache(true))

	v, err := Fetch(ctx, p, serializer.NewXML[doc](), statusReq)
	var cerr *CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "put", cerr.Op)
	assert.Equal(t, "v", v.Value, "value is returned alongside the write failure")
}

func TestFetchReadFailureDegradesToLiveFetch(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := &flakyStore{MemoryStore: cache.NewMemoryStore(), getErr: errors.New("connection reset")}
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("live", t0.Add(time.Hour)), nil
	}}

	var reported []*CacheError
	p := newTestPipeline(t, api, store, clock, WithCacheErrorHandler(func(_ context.Context, err *CacheError) {
		reported = append(reported, err)
	}))

	v, err := Fetch(ctx, p, serializer.NewXML[doc](), statusReq)
	require.NoError(t, err)
	assert.Equal(t, "live", v.Value)
	assert.EqualValues(t, 1, api.calls.Load())
	require.Len(t, reported, 1)
	assert.Equal(t, "get", reported[0].Op)

	strict := newTestPipeline(t, api, store, clock, WithStrictCache(true))
	_, err = Fetch(ctx, strict, serializer.NewXML[doc](), statusReq)
	var cerr *CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "get", cerr.Op)
	assert.EqualValues(t, 1, api.calls.Load(), "strict read failure does not fetch")
}

func TestFetchMalformedPayloadLeavesEntryUnchanged(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(n int) ([]byte, error) {
		if n == 1 {
			return docBody("good", t0.Add(time.Minute)), nil
		}
		return []byte("<doc><value>broken"), nil
	}}
	p := newTestPipeline(t, api, store, clock)
	s := serializer.NewXML[doc]()

	_, err := Fetch(ctx, p, s, statusReq)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = Fetch(ctx, p, s, statusReq)
	var derr *DeserializationError
	require.ErrorAs(t, err, &derr)

	key, _ := p.Resolve(statusReq)
	assert.Equal(t, key, derr.URI)
	entry, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, docBody("good", t0.Add(time.Minute)), entry.Body)
}

func TestFetchTransportErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return nil, &HTTPError{StatusCode: 503, Body: []byte("down")}
	}}
	p := newTestPipeline(t, api, store, clock)

	_, err := Fetch(ctx, p, serializer.NewXML[doc](), statusReq)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 503, terr.StatusCode())
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, []byte("down"), herr.Body)

	assert.EqualValues(t, 1, api.calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestFetchCorruptCachedBodyIsMiss(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("fresh", t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, store, clock)

	key, err := p.Resolve(statusReq)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, &cache.Entry{Body: []byte("garbage"), ValidUntil: t0.Add(time.Hour)}))

	v, err := Fetch(ctx, p, serializer.NewXML[doc](), statusReq)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v.Value)
	assert.EqualValues(t, 1, api.calls.Load())
}

func TestFetchWithoutValidityIsAlwaysStale(t *testing.T) {
	type plain struct {
		Name string `json:"name"`
	}
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return []byte(`{"name":"Goonswarm"}`), nil
	}}
	p := newTestPipeline(t, api, store, clock)
	s := serializer.NewJSON[plain]()

	for i := 0; i < 2; i++ {
		v, err := Fetch(ctx, p, s, Request{Path: "/alliances/1/"})
		require.NoError(t, err)
		assert.Equal(t, "Goonswarm", v.Name)
	}
	assert.EqualValues(t, 2, api.calls.Load())
	assert.Equal(t, 1, store.Len(), "write-through record is kept")
}

func TestFetchWithoutStoreNeverCaches(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("v", t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, nil, clock)

	assert.False(t, p.Cached())
	assert.False(t, p.CacheRead())
	assert.False(t, p.CacheWrite())

	for i := 0; i < 2; i++ {
		_, err := Fetch(ctx, p, serializer.NewXML[doc](), statusReq)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, api.calls.Load())
}

func TestFetchConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}
	store := cache.NewMemoryStore()
	api := &fakeAPI{respond: func(int) ([]byte, error) {
		return docBody("v", t0.Add(time.Hour)), nil
	}}
	p := newTestPipeline(t, api, store, clock)
	s := serializer.NewXML[doc]()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				p.SetCacheRead(i%8 == 0)
			}
			v, err := Fetch(ctx, p, s, statusReq)
			assert.NoError(t, err)
			assert.Equal(t, "v", v.Value)
		}(i)
	}
	wg.Wait()

	calls := api.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(1))
	assert.LessOrEqual(t, calls, int32(16))
	assert.Equal(t, 1, store.Len())
}

func TestResolve(t *testing.T) {
	p, err := New(testBase+"/", ExecutorFunc(func(context.Context, string) ([]byte, error) { return nil, nil }))
	require.NoError(t, err)

	cred := NewCredential("123", "abc def")
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "no parameters",
			req:  Request{Path: "/server/ServerStatus.xml.aspx"},
			want: testBase + "/server/ServerStatus.xml.aspx",
		},
		{
			name: "credential only",
			req:  Request{Path: "/account/Characters.xml.aspx", Credential: cred},
			want: testBase + "/account/Characters.xml.aspx?keyID=123&vCode=abc+def",
		},
		{
			name: "credential first then params in order",
			req: Request{
				Path:       "char/CharacterSheet.xml.aspx",
				Credential: cred,
				Query:      NewQuery().Add("characterID", "90000001").Add("a", "1"),
			},
			want: testBase + "/char/CharacterSheet.xml.aspx?keyID=123&vCode=abc+def&characterID=90000001&a=1",
		},
		{
			name: "params are escaped",
			req:  Request{Path: "/eve/CharacterID.xml.aspx", Query: NewQuery().Add("names", "CCP Falcon,Chribba&co")},
			want: testBase + "/eve/CharacterID.xml.aspx?names=CCP+Falcon%2CChribba%26co",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Resolve(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveKeysFollowInsertionOrder(t *testing.T) {
	p, err := New(testBase, ExecutorFunc(func(context.Context, string) ([]byte, error) { return nil, nil }))
	require.NoError(t, err)

	ab, err := p.Resolve(Request{Path: "/x", Query: NewQuery().Add("a", "1").Add("b", "2")})
	require.NoError(t, err)
	ba, err := p.Resolve(Request{Path: "/x", Query: NewQuery().Add("b", "2").Add("a", "1")})
	require.NoError(t, err)
	again, err := p.Resolve(Request{Path: "/x", Query: NewQuery().Add("a", "1").Add("b", "2")})
	require.NoError(t, err)

	assert.NotEqual(t, ab, ba)
	assert.Equal(t, ab, again)

	_, err = p.Resolve(Request{Path: "/x?a=1"})
	assert.Error(t, err)
}

func TestNewValidatesArguments(t *testing.T) {
	exec := ExecutorFunc(func(context.Context, string) ([]byte, error) { return nil, nil })

	_, err := New(testBase, nil)
	assert.Error(t, err)
	_, err = New("/relative", exec)
	assert.Error(t, err)
	_, err = New("://bad", exec)
	assert.Error(t, err)

	p, err := New(testBase, exec, WithStore(cache.NewMemoryStore()))
	require.NoError(t, err)
	assert.True(t, p.CacheRead())
	assert.True(t, p.CacheWrite())
	p.SetCacheWrite(false)
	assert.True(t, p.CacheRead())
	assert.False(t, p.CacheWrite())
	assert.Equal(t, testBase, p.BaseURL())
}
