package appview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bluesky-social/feedview/feeds"
	"github.com/bluesky-social/feedview/internal/testutil"
	"github.com/bluesky-social/feedview/keyset"
	"github.com/bluesky-social/feedview/views"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "did:plc:alice"
	bob   = "did:plc:bob"
	carol = "did:plc:carol"
	dave  = "did:plc:dave"
)

func testServer(t *testing.T, fx *testutil.Fixtures) *Server {
	t.Helper()
	srv, err := NewServer(fx.DB, Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ImageCDN: "https://cdn.example",
		TeamDIDs: []string{carol},
		// each test server gets its own HTTP metrics
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return srv
}

func setup(t *testing.T) *testutil.Fixtures {
	fx := testutil.NewFixtures(t)
	fx.Actor(alice, "alice.test")
	fx.Actor(bob, "bob.test")
	fx.Actor(carol, "carol.test")
	fx.Actor(dave, "dave.test")
	return fx
}

func drainFeed(t *testing.T, next func(cursor string) (*FeedPage, error)) []*views.FeedViewPost {
	t.Helper()

	var out []*views.FeedViewPost
	cursor := ""
	for i := 0; i < 100; i++ {
		page, err := next(cursor)
		require.NoError(t, err)
		out = append(out, page.Feed...)
		if page.Cursor == "" {
			return out
		}
		cursor = page.Cursor
	}
	t.Fatal("pagination did not terminate")
	return nil
}

func TestTimelineHydration(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)

	fx.Follow(alice, bob)
	own := fx.Post(alice)
	fromBob := fx.Post(bob)
	reply := fx.Post(bob, testutil.ReplyTo(own))
	quoted := fx.Post(dave)
	repost := fx.Repost(bob, quoted)
	fx.Post(carol)

	fg := testServer(t, fx).fg
	items := drainFeed(t, func(cursor string) (*FeedPage, error) {
		return fg.GetTimeline(ctx, alice, cursor, 2)
	})

	require.Len(t, items, 4)
	assert.Equal(quoted.Uri, items[0].Post.Uri)
	require.NotNil(t, items[0].Reason)
	assert.Equal(bob, items[0].Reason.By.Did)
	assert.Equal(repost.SortAt, items[0].Reason.IndexedAt)

	assert.Equal(reply.Uri, items[1].Post.Uri)
	require.NotNil(t, items[1].Reply)
	assert.Equal(own.Uri, items[1].Reply.Parent.Uri())
	assert.Equal(own.Uri, items[1].Reply.Root.Uri())
	assert.NotNil(items[1].Reply.Parent.PostView)

	assert.Equal(fromBob.Uri, items[2].Post.Uri)
	assert.Nil(items[2].Reason)
	assert.Nil(items[2].Reply)
	assert.Equal(own.Uri, items[3].Post.Uri)
	assert.Equal(alice, items[3].Post.Author.Did)
}

func TestFeedPlaceholders(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)

	fx.Follow(alice, bob)
	fromCarol := fx.Post(carol)
	replyToCarol := fx.Post(bob, testutil.ReplyTo(fromCarol))
	gone := fx.Post(dave)
	replyToGone := fx.Post(bob, testutil.ReplyTo(gone))
	fx.Block(carol, alice)
	fx.DeletePost(gone)

	fg := testServer(t, fx).fg
	page, err := fg.GetTimeline(ctx, alice, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Feed, 2)

	// the reply itself is shown; its context degrades
	assert.Equal(replyToGone.Uri, page.Feed[0].Post.Uri)
	assert.True(page.Feed[0].Reply.Parent.IsNotFound())
	assert.Equal(replyToCarol.Uri, page.Feed[1].Post.Uri)
	assert.True(page.Feed[1].Reply.Parent.IsBlocked())
	assert.True(page.Feed[1].Reply.Root.IsBlocked())
}

func TestDroppedItems(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)

	for i := 0; i < 3; i++ {
		fx.Post(carol)
	}
	fx.TakedownActor(carol)

	fg := testServer(t, fx).fg
	page, err := fg.ListFeed(ctx, alice, feeds.AlgoBskyTeam, "", 2)
	require.NoError(t, err)
	assert.Empty(page.Feed)
	assert.NotEmpty(page.Cursor)

	page, err = fg.ListFeed(ctx, alice, feeds.AlgoBskyTeam, page.Cursor, 2)
	require.NoError(t, err)
	assert.Empty(page.Feed)
	assert.NotEmpty(page.Cursor)

	page, err = fg.ListFeed(ctx, alice, feeds.AlgoBskyTeam, page.Cursor, 2)
	require.NoError(t, err)
	assert.Empty(page.Feed)
	assert.Empty(page.Cursor)
}

func TestFeedErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)
	fg := testServer(t, fx).fg

	_, err := fg.ListFeed(ctx, alice, "nope", "", 10)
	assert.True(errors.Is(err, feeds.ErrUnsupportedAlgorithm))

	_, err = fg.ListFeed(ctx, alice, feeds.AlgoBskyTeam, "garbage", 10)
	assert.True(errors.Is(err, keyset.ErrMalformedCursor))

	_, err = fg.GetTimeline(ctx, "", "", 10)
	assert.True(errors.Is(err, ErrInvalidRequest))

	_, err = fg.GetAuthorFeed(ctx, alice, bob, "posts_sideways", "", 10)
	assert.True(errors.Is(err, ErrInvalidRequest))
	assert.True(errors.Is(err, feeds.ErrInvalidFilter))

	_, err = fg.GetAuthorFeed(ctx, alice, "", "", "", 10)
	assert.True(errors.Is(err, ErrInvalidRequest))

	_, err = fg.GetPostThread(ctx, alice, "", 6, 80)
	assert.True(errors.Is(err, ErrInvalidRequest))
}

func TestAuthorFeed(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)

	var want []string
	for i := 0; i < 5; i++ {
		want = append([]string{fx.Post(bob).Uri}, want...)
	}

	fg := testServer(t, fx).fg
	items := drainFeed(t, func(cursor string) (*FeedPage, error) {
		return fg.GetAuthorFeed(ctx, alice, bob, "", cursor, 2)
	})

	var got []string
	for _, it := range items {
		got = append(got, it.Post.Uri)
	}
	assert.Equal(want, got)
}

func TestClampLimit(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(DefaultLimit, clampLimit(0))
	assert.Equal(DefaultLimit, clampLimit(-3))
	assert.Equal(MaxLimit, clampLimit(1000))
	assert.Equal(7, clampLimit(7))
}
