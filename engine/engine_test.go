package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feed"
	"github.com/rushteam/shoprec/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func shopFeed() *feed.StaticFeed {
	return &feed.StaticFeed{
		InteractionRows: []core.Interaction{
			{UserID: 1, ProductID: 1, TotalQuantity: 2, OrderCount: 1},
			{UserID: 1, ProductID: 2, TotalQuantity: 1, OrderCount: 1},
			{UserID: 2, ProductID: 1, TotalQuantity: 1, OrderCount: 1},
			{UserID: 2, ProductID: 5, TotalQuantity: 1, OrderCount: 1},
			{UserID: 3, ProductID: 3, TotalQuantity: 2, OrderCount: 1},
			{UserID: 3, ProductID: 4, TotalQuantity: 1, OrderCount: 1},
			{UserID: 4, ProductID: 2, TotalQuantity: 1, OrderCount: 1},
			{UserID: 4, ProductID: 5, TotalQuantity: 3, OrderCount: 2},
		},
		ProductRows: []core.Product{
			{ProductID: 1, Name: "Espresso Beans", Description: "dark roast coffee beans", CategoryID: 1, CategoryName: "Coffee", Price: 12},
			{ProductID: 2, Name: "Arabica Coffee", Description: "medium roast coffee beans", CategoryID: 1, CategoryName: "Coffee", Price: 15},
			{ProductID: 3, Name: "Green Tea", Description: "loose leaf green tea", CategoryID: 2, CategoryName: "Tea", Price: 8},
			{ProductID: 4, Name: "Jasmine Tea", Description: "fragrant jasmine green tea", CategoryID: 2, CategoryName: "Tea", Price: 9},
			{ProductID: 5, Name: "Coffee Grinder", Description: "burr grinder for coffee beans", CategoryID: 3, CategoryName: "Equipment", Price: 60},
		},
		SearchRows: []core.Search{{UserID: 1, Term: "coffee", CategoryID: 1, Count: 3}},
		History:    map[int64][]int64{1: {1, 2}, 3: {3}},
	}
}

type fixture struct {
	eng     *Engine
	feed    *feed.StaticFeed
	store   *store.MemoryStore
	clock   *clock
	metrics *Metrics
}

func newFixture(t *testing.T, f *feed.StaticFeed, tweak func(o *Options)) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMetrics(prometheus.NewRegistry())
	opts := Options{Feed: f, Store: s, Metrics: m, Now: c.Now}
	if tweak != nil {
		tweak(&opts)
	}
	eng, err := New(opts)
	require.NoError(t, err)
	return &fixture{eng: eng, feed: f, store: s, clock: c, metrics: m}
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, core.IsInvalidInput(err))

	_, err = New(Options{Feed: shopFeed(), FilterExpr: "item.meta.price <"})
	assert.True(t, core.IsInvalidInput(err))
}

func TestTrain(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()

	res, err := fx.eng.Train(ctx)
	require.NoError(t, err)
	assert.True(t, res.Collaborative)
	assert.True(t, res.Content)
	assert.Equal(t, 4, res.Users)
	assert.Equal(t, 3, res.LatentFactors)
	assert.Equal(t, 8, res.Interactions)
	assert.Equal(t, 1, res.Searches)
	assert.True(t, res.Persisted)
	assert.NotEmpty(t, res.RunID)

	st := fx.eng.Status()
	assert.Equal(t, StateTrained, st.State)
	assert.Equal(t, res.RunID, st.RunID)
	assert.Equal(t, 5, st.Products)
	assert.Equal(t, 5, st.CatalogSize)

	_, err = fx.store.Get(ctx, DefaultStateKey)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.TrainRuns.WithLabelValues("ok")))
}

func TestTrain_EmptyFeeds(t *testing.T) {
	fx := newFixture(t, &feed.StaticFeed{}, nil)

	_, err := fx.eng.Train(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsInsufficientData(err))
	assert.Equal(t, StateUntrained, fx.eng.Status().State)
	assert.Nil(t, fx.eng.Snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.TrainRuns.WithLabelValues("insufficient_data")))
}

func TestTrain_FeedUnavailable(t *testing.T) {
	f := shopFeed()
	f.Err = errors.New("connection refused")
	fx := newFixture(t, f, nil)

	_, err := fx.eng.Train(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.False(t, core.IsInsufficientData(err))
}

func TestTrain_PartialSuccess(t *testing.T) {
	f := shopFeed()
	f.InteractionRows = nil
	fx := newFixture(t, f, nil)
	ctx := context.Background()

	res, err := fx.eng.Train(ctx)
	require.NoError(t, err)
	assert.False(t, res.Collaborative)
	assert.True(t, res.Content)
	assert.NotEmpty(t, res.CollaborativeError)

	ids, err := fx.eng.RecommendCollaborative(ctx, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = fx.eng.RecommendHybrid(ctx, 1, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)
}

func TestTrain_KeepsPriorSnapshotOnFailure(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()

	res, err := fx.eng.Train(ctx)
	require.NoError(t, err)

	fx.feed.Update(func(f *feed.StaticFeed) {
		f.InteractionRows = nil
		f.ProductRows = nil
	})
	_, err = fx.eng.Train(ctx)
	assert.True(t, core.IsInsufficientData(err))

	st := fx.eng.Status()
	assert.Equal(t, StateTrained, st.State)
	assert.Equal(t, res.RunID, st.RunID)
}

func TestRecommendCollaborative(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		ids, err := fx.eng.RecommendCollaborative(ctx, 99, 5)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("exclude interacted", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), func(o *Options) { o.ExcludeInteracted = true })
		ids, err := fx.eng.RecommendCollaborative(ctx, 1, 5)
		require.NoError(t, err)
		require.NotEmpty(t, ids)
		assert.Equal(t, int64(5), ids[0])
		assert.NotContains(t, ids, int64(1))
		assert.NotContains(t, ids, int64(2))
		assert.Positive(t, testutil.ToFloat64(fx.metrics.Filtered.WithLabelValues("filter.interacted")))
	})

	t.Run("keeps interacted by default", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		ids, err := fx.eng.RecommendCollaborative(ctx, 1, 10)
		require.NoError(t, err)
		assert.Contains(t, ids, int64(5))
		assert.Contains(t, ids, int64(1))
	})
}

func TestRecommendContent(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()

	ids, err := fx.eng.RecommendContent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, int64(5), ids[0])
	assert.NotContains(t, ids, int64(1))
	assert.NotContains(t, ids, int64(2))

	ids, err = fx.eng.RecommendContent(ctx, 42, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)

	fx.feed.Update(func(f *feed.StaticFeed) { f.Err = errors.New("timeout") })
	_, err = fx.eng.RecommendContent(ctx, 1, 5)
	assert.True(t, core.IsUnavailable(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Recommendations.WithLabelValues(MethodContent, "unavailable")))
}

func TestRecommendHybrid(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()

	ids, err := fx.eng.RecommendHybrid(ctx, 1, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ids), 3)
	assert.NotEmpty(t, ids)

	seen := make(map[int64]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate %d", id)
		seen[id] = true
	}

	viaMethod, err := fx.eng.Recommend(ctx, 1, 3, "")
	require.NoError(t, err)
	assert.Equal(t, ids, viaMethod)
}

func TestRecommend_DefaultN(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)

	ids, err := fx.eng.Recommend(context.Background(), 3, 0, MethodContent)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestSimilarProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("excludes itself", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		ids, err := fx.eng.SimilarProducts(ctx, 3, 5)
		require.NoError(t, err)
		require.NotEmpty(t, ids)
		assert.Equal(t, int64(4), ids[0])
		assert.NotContains(t, ids, int64(3))
	})

	t.Run("unknown product", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		_, err := fx.eng.SimilarProducts(ctx, 999, 5)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("blocklist and expression", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), func(o *Options) {
			o.BlockedProducts = []int64{5}
			o.BlocklistKey = "blocked_products"
			o.FilterExpr = `item.meta.price < 14.0`
		})
		require.NoError(t, fx.store.Set(ctx, "blocked_products", []byte("[3]")))

		ids, err := fx.eng.SimilarProducts(ctx, 2, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 4}, ids)
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		_, err := fx.eng.Train(ctx)
		require.NoError(t, err)

		wantCF, err := fx.eng.RecommendCollaborative(ctx, 2, 5)
		require.NoError(t, err)
		wantSim, err := fx.eng.SimilarProducts(ctx, 1, 5)
		require.NoError(t, err)

		down := shopFeed()
		down.Err = errors.New("down")
		restored, err := New(Options{Feed: down, Store: fx.store, Now: fx.clock.Now})
		require.NoError(t, err)
		require.NoError(t, restored.Restore(ctx))

		gotCF, err := restored.RecommendCollaborative(ctx, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, wantCF, gotCF)
		gotSim, err := restored.SimilarProducts(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, wantSim, gotSim)
		assert.Equal(t, fx.eng.Status().RunID, restored.Status().RunID)
	})

	t.Run("trains without saved state", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		require.NoError(t, fx.eng.Restore(ctx))
		assert.Equal(t, StateTrained, fx.eng.Status().State)
		_, err := fx.store.Get(ctx, DefaultStateKey)
		assert.NoError(t, err)
	})

	t.Run("trains over corrupt state", func(t *testing.T) {
		fx := newFixture(t, shopFeed(), nil)
		require.NoError(t, fx.store.Set(ctx, DefaultStateKey, []byte("garbage")))
		require.NoError(t, fx.eng.Restore(ctx))
		assert.Equal(t, StateTrained, fx.eng.Status().State)
	})

	t.Run("unavailable", func(t *testing.T) {
		fx := newFixture(t, &feed.StaticFeed{}, nil)
		err := fx.eng.Restore(ctx)
		assert.True(t, core.IsUnavailable(err))

		_, err = fx.eng.RecommendHybrid(ctx, 1, 5)
		assert.True(t, core.IsUnavailable(err))
	})
}

func TestLazyRestore(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)

	ids, err := fx.eng.RecommendCollaborative(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)
	assert.Equal(t, StateTrained, fx.eng.Status().State)
}

func TestReset(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()

	_, err := fx.eng.Train(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.eng.Reset(ctx))

	assert.Equal(t, StateUntrained, fx.eng.Status().State)
	_, err = fx.store.Get(ctx, DefaultStateKey)
	assert.True(t, core.IsStoreNotFound(err))
	assert.True(t, core.IsStoreNotFound(fx.eng.LoadSaved(ctx)))

	// 没有快照时重置也成功
	require.NoError(t, fx.eng.Reset(ctx))
}

// slowHistoryFeed 的 UserHistory 一直阻塞到 ctx 结束。
type slowHistoryFeed struct {
	*feed.StaticFeed
}

func (f slowHistoryFeed) UserHistory(ctx context.Context, _ int64, _ int) ([]int64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRecommendHybrid_RecallTimeout(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	eng, err := New(Options{
		Feed:          slowHistoryFeed{shopFeed()},
		Store:         s,
		RecallTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	_, err = eng.Train(ctx)
	require.NoError(t, err)

	_, err = eng.RecommendHybrid(ctx, 1, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 单路协同过滤不经过 fanout，不受影响
	ids, err := eng.RecommendCollaborative(ctx, 1, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	fx := newFixture(t, shopFeed(), nil)
	assert.True(t, core.IsUnavailable(fx.eng.Save(ctx)))

	noStore, err := New(Options{Feed: shopFeed()})
	require.NoError(t, err)
	assert.True(t, core.IsNotSupported(noStore.Save(ctx)))
}

func TestStatus_Stale(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()
	_, err := fx.eng.Train(ctx)
	require.NoError(t, err)

	fx.clock.Advance(8 * 24 * time.Hour)
	st := fx.eng.Status()
	assert.Equal(t, StateStale, st.State)
	assert.Equal(t, 8*24*time.Hour, st.Age)

	ids, err := fx.eng.RecommendCollaborative(ctx, 1, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)
}

func TestConcurrentTrainAndServe(t *testing.T) {
	fx := newFixture(t, shopFeed(), nil)
	ctx := context.Background()
	_, err := fx.eng.Train(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := fx.eng.Train(ctx); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := fx.eng.RecommendHybrid(ctx, int64(i%4+1), 3); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"collaborative", MethodCollaborative},
		{" Content ", MethodContent},
		{"hybrid", MethodHybrid},
		{"", MethodHybrid},
		{"popular", MethodHybrid},
	}
	for _, tt := range tests {
		if got := NormalizeMethod(tt.in); got != tt.want {
			t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
