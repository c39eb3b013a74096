package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = time.Second
	testTick    = time.Millisecond
)

// gatedFilterer blocks each query until its gate for that query is released.
type gatedFilterer struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func (g *gatedFilterer) gate(q string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gates == nil {
		g.gates = map[string]chan struct{}{}
	}
	ch, ok := g.gates[q]
	if !ok {
		ch = make(chan struct{})
		g.gates[q] = ch
	}
	return ch
}

func (g *gatedFilterer) Filter(_ context.Context, q, _ string) []domain.Product {
	<-g.gate(q)
	return []domain.Product{{ID: q, Name: q}}
}

func committed(f *Feed) FeedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed
}

func TestFeed_LateOlderResultIsDiscarded(t *testing.T) {
	src := &gatedFilterer{}
	feed := NewFeed(src)
	ctx := context.Background()

	type outcome struct {
		res        FeedResult
		superseded bool
	}
	older := make(chan outcome, 1)
	go func() {
		r, s := feed.Request(ctx, "m", "")
		older <- outcome{r, s}
	}()

	// wait until the first request has taken generation 1
	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.issued == 1
	}, testTimeout, testTick)

	newer := make(chan outcome, 1)
	go func() {
		r, s := feed.Request(ctx, "mug", "")
		newer <- outcome{r, s}
	}()
	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.issued == 2
	}, testTimeout, testTick)

	close(src.gate("mug"))
	n := <-newer
	assert.False(t, n.superseded)
	assert.Equal(t, uint64(2), n.res.Generation)

	close(src.gate("m"))
	o := <-older
	assert.True(t, o.superseded)
	assert.Equal(t, uint64(1), o.res.Generation)

	assert.Equal(t, "mug", committed(feed).Query)
}

func TestFeed_InOrderResultsCommit(t *testing.T) {
	src := &gatedFilterer{}
	close(src.gate("a"))
	close(src.gate("b"))
	feed := NewFeed(src)

	r1, s1 := feed.Request(context.Background(), "a", "")
	r2, s2 := feed.Request(context.Background(), "b", "")
	assert.False(t, s1)
	assert.False(t, s2)
	assert.Less(t, r1.Generation, r2.Generation)
	assert.Equal(t, "b", committed(feed).Query)
}

func TestFeed_StartsEmpty(t *testing.T) {
	feed := NewFeed(&gatedFilterer{})
	cur := committed(feed)
	assert.Zero(t, cur.Generation)
	assert.NotNil(t, cur.Products)
}
