package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Count int      `json:"count"`
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }

type nsKey struct{}

func namespace(ctx context.Context) (string, error) {
	ns, _ := ctx.Value(nsKey{}).(string)
	return ns, nil
}

func TestTyped_GetOrFetchIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), nsKey{}, "jane"))
	cancel()
	c := New(nil, WithScope(namespace))
	got, err := For[string](c).GetOrFetch(ctx, "k", time.Minute, func(fctx context.Context) (string, error) {
		if err := fctx.Err(); err != nil {
			return "", err
		}
		ns, _ := namespace(fctx)
		return "value for " + ns, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value for jane", got)
}

func TestTyped_GetOrFetch(t *testing.T) {
	ctx := context.Background()
	c := New(nil)
	people := For[[]*entry](c)
	calls := 0
	fetch := func(context.Context) ([]*entry, error) {
		calls++
		return []*entry{{Name: "ann", Tags: []string{"x"}, Count: 1}}, nil
	}

	first, err := people.GetOrFetch(ctx, "directory_search:ann", time.Minute, fetch)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := people.GetOrFetch(ctx, "directory_search:ann", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []*entry{{Name: "ann", Tags: []string{"x"}, Count: 1}}, second)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Total: 2, HitRatePercent: 50}, c.Stats())
}

func TestTyped_FetchErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore())
	typed := For[entry](c)
	boom := errors.New("boom")

	_, err := typed.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (entry, error) { return entry{}, boom })
	assert.True(t, errors.Is(err, boom))

	got, err := typed.GetOrFetch(ctx, "k", time.Minute, func(context.Context) (entry, error) { return entry{Name: "ok"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Name)
}

func TestTyped_StoreFailureFallsBackToFetch(t *testing.T) {
	c := New(failingStore{err: errors.New("redis down")})
	typed := For[int](c)
	got, err := typed.GetOrFetch(context.Background(), "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestTyped_Coalesces(t *testing.T) {
	c := New(nil)
	typed := For[string](c)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = typed.GetOrFetch(context.Background(), "same", time.Minute, fetch)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "value", r)
	}
}

func TestCache_Scope(t *testing.T) {
	c := New(nil, WithScope(namespace))
	alice := context.WithValue(context.Background(), nsKey{}, "alice@acme.com")
	bob := context.WithValue(context.Background(), nsKey{}, "bob@acme.com")

	require.NoError(t, c.Set(alice, "k", entry{Name: "alice"}, time.Minute))

	var got entry
	ok, err := c.Get(bob, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Get(alice, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", got.Name)

	require.NoError(t, c.Delete(alice, "k"))
	ok, _ = c.Get(alice, "k", &got)
	assert.False(t, ok)
	assert.Equal(t, "default|k", New(nil, WithScope(namespace)).key(context.Background(), "k"))
}
