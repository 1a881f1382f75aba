package thread

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bluesky-social/feedview/hydrator"
	"github.com/bluesky-social/feedview/internal/testutil"
	"github.com/bluesky-social/feedview/labels"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/views"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "did:plc:alice"
	bob   = "did:plc:bob"
	carol = "did:plc:carol"
	dave  = "did:plc:dave"
)

func testComposer(fx *testutil.Fixtures) *Composer {
	hyd := hydrator.NewHydrator(fx.DB,
		social.NewGormDirectory(fx.DB),
		labels.NewGormStore(fx.DB),
		nil,
		nil,
	)
	return NewComposer(NewGormStore(fx.DB), hyd, nil)
}

func setup(t *testing.T) *testutil.Fixtures {
	fx := testutil.NewFixtures(t)
	fx.Actor(alice, "alice.test")
	fx.Actor(bob, "bob.test")
	fx.Actor(carol, "carol.test")
	fx.Actor(dave, "dave.test")
	return fx
}

func chain(fx *testutil.Fixtures, authors ...string) []*models.FeedPost {
	var out []*models.FeedPost
	for i, a := range authors {
		if i == 0 {
			out = append(out, fx.Post(a))
			continue
		}
		out = append(out, fx.Post(a, testutil.ReplyTo(out[i-1])))
	}
	return out
}

func uriOf(n *views.ThreadNode) string {
	return n.Post.Uri()
}

func TestDepthAndHeight(t *testing.T) {
	assert := assert.New(t)
	fx := setup(t)

	posts := chain(fx, alice, bob, alice, bob, alice, bob)
	p1, p2, c1, c2 := posts[1], posts[2], posts[3], posts[4]

	tn, err := testComposer(fx).GetThread(context.Background(), alice, p2.Uri, 2, 1)
	require.NoError(t, err)

	assert.Equal(p2.Uri, uriOf(tn))
	require.NotNil(t, tn.Parent)
	assert.Equal(p1.Uri, uriOf(tn.Parent))
	assert.Nil(tn.Parent.Parent)
	assert.Nil(tn.Parent.Replies)

	require.Len(t, tn.Replies, 1)
	assert.Equal(c1.Uri, uriOf(tn.Replies[0]))
	require.Len(t, tn.Replies[0].Replies, 1)
	assert.Equal(c2.Uri, uriOf(tn.Replies[0].Replies[0]))
	assert.NotNil(tn.Replies[0].Replies[0].Replies)
	assert.Empty(tn.Replies[0].Replies[0].Replies)
}

func TestFullChain(t *testing.T) {
	assert := assert.New(t)
	fx := setup(t)

	posts := chain(fx, alice, bob, alice, bob)

	tn, err := testComposer(fx).GetThread(context.Background(), "", posts[3].Uri, 6, 80)
	require.NoError(t, err)

	var up []string
	for n := tn.Parent; n != nil; n = n.Parent {
		up = append(up, uriOf(n))
	}
	assert.Equal([]string{posts[2].Uri, posts[1].Uri, posts[0].Uri}, up)
	assert.Empty(tn.Replies)

	// zero height means no parent at all
	tn, err = testComposer(fx).GetThread(context.Background(), "", posts[3].Uri, 6, 0)
	require.NoError(t, err)
	assert.Nil(tn.Parent)
}

func TestPruningAsymmetry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)

	f := fx.Post(alice)
	r1 := fx.Post(bob, testutil.ReplyTo(f))
	r2 := fx.Post(dave, testutil.ReplyTo(r1))

	c := testComposer(fx)
	tn, err := c.GetThread(ctx, alice, f.Uri, 3, 3)
	require.NoError(t, err)
	require.Len(t, tn.Replies, 1)
	assert.Equal(r1.Uri, uriOf(tn.Replies[0]))
	require.Len(t, tn.Replies[0].Replies, 1)
	assert.Equal(r2.Uri, uriOf(tn.Replies[0].Replies[0]))

	fx.DeleteActor(dave)

	tn, err = c.GetThread(ctx, alice, f.Uri, 3, 3)
	require.NoError(t, err)
	require.Len(t, tn.Replies, 1)
	assert.Equal(r1.Uri, uriOf(tn.Replies[0]))
	assert.NotNil(tn.Replies[0].Replies)
	assert.Empty(tn.Replies[0].Replies)

	tn, err = c.GetThread(ctx, alice, r1.Uri, 3, 3)
	require.NoError(t, err)
	assert.Empty(tn.Replies)

	// the same missing author on the parent chain is surfaced
	tn, err = c.GetThread(ctx, alice, fx.Post(bob, testutil.ReplyTo(r2)).Uri, 3, 3)
	require.NoError(t, err)
	require.NotNil(t, tn.Parent)
	assert.True(tn.Parent.Post.IsNotFound())
	assert.Equal(r2.Uri, uriOf(tn.Parent))
	assert.Nil(tn.Parent.Parent)
}

func TestDeletedParent(t *testing.T) {
	assert := assert.New(t)
	fx := setup(t)

	posts := chain(fx, alice, bob, alice)
	fx.DeletePost(posts[1])

	tn, err := testComposer(fx).GetThread(context.Background(), alice, posts[2].Uri, 6, 80)
	require.NoError(t, err)
	require.NotNil(t, tn.Parent)
	assert.True(tn.Parent.Post.IsNotFound())
	assert.Nil(tn.Parent.Parent)
}

func TestBlocks(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := setup(t)

	root := fx.Post(alice)
	mid := fx.Post(carol, testutil.ReplyTo(root))
	focal := fx.Post(bob, testutil.ReplyTo(mid))
	fromCarol := fx.Post(carol, testutil.ReplyTo(focal))
	fx.Post(bob, testutil.ReplyTo(fromCarol))
	fromDave := fx.Post(dave, testutil.ReplyTo(focal))

	fx.Block(carol, alice)
	fx.Mute(alice, dave)

	c := testComposer(fx)
	tn, err := c.GetThread(ctx, alice, focal.Uri, 6, 80)
	require.NoError(t, err)

	// a blocked parent ends the chain
	require.NotNil(t, tn.Parent)
	assert.True(tn.Parent.Post.IsBlocked())
	assert.Equal(mid.Uri, uriOf(tn.Parent))
	assert.Nil(tn.Parent.Parent)

	// a blocked reply is a leaf; muted replies are shown as-is
	require.Len(t, tn.Replies, 2)
	assert.True(tn.Replies[0].Post.IsBlocked())
	assert.Equal(fromCarol.Uri, uriOf(tn.Replies[0]))
	assert.Nil(tn.Replies[0].Replies)
	assert.Equal(fromDave.Uri, uriOf(tn.Replies[1]))
	require.NotNil(t, tn.Replies[1].Post.PostView)
	assert.True(tn.Replies[1].Post.PostView.Author.Viewer.Muted)

	// the blocked post itself is indistinguishable from a missing one
	_, err = c.GetThread(ctx, alice, mid.Uri, 6, 80)
	assert.True(errors.Is(err, ErrNotFound))
	_, err = c.GetThread(ctx, alice, "at://did:plc:bob/app.bsky.feed.post/missing", 6, 80)
	assert.True(errors.Is(err, ErrNotFound))

	// anonymous viewers see everything
	tn, err = c.GetThread(ctx, "", mid.Uri, 6, 80)
	require.NoError(t, err)
	assert.Equal(mid.Uri, uriOf(tn))
}

func TestReplyOrder(t *testing.T) {
	assert := assert.New(t)
	fx := setup(t)

	focal := fx.Post(alice)
	late := fx.Post(bob, testutil.ReplyTo(focal))
	early := fx.Post(carol, testutil.ReplyTo(focal), testutil.At(fx.Now().AddDate(0, 0, -1)))

	tn, err := testComposer(fx).GetThread(context.Background(), alice, focal.Uri, 1, 0)
	require.NoError(t, err)
	require.Len(t, tn.Replies, 2)
	assert.Equal(early.Uri, uriOf(tn.Replies[0]))
	assert.Equal(late.Uri, uriOf(tn.Replies[1]))
}

func TestClamp(t *testing.T) {
	assert := assert.New(t)
	fx := setup(t)

	authors := make([]string, MaxDepth+3)
	for i := range authors {
		authors[i] = bob
	}
	posts := chain(fx, authors...)

	tn, err := testComposer(fx).GetThread(context.Background(), alice, posts[0].Uri, 1000, -5)
	require.NoError(t, err)
	assert.Nil(tn.Parent)

	levels := 0
	for n := tn; len(n.Replies) > 0; n = n.Replies[0] {
		levels++
	}
	assert.Equal(MaxDepth, levels)

	assert.Equal(0, clamp(-1, 10))
	assert.Equal(10, clamp(11, 10))
	assert.Equal(4, clamp(4, 10))
}

func TestThreadJSON(t *testing.T) {
	assert := assert.New(t)
	fx := setup(t)

	posts := chain(fx, alice, bob, alice)
	fx.DeletePost(posts[0])

	tn, err := testComposer(fx).GetThread(context.Background(), alice, posts[1].Uri, 1, 1)
	require.NoError(t, err)

	out, err := json.Marshal(tn)
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"$type"`
		Post struct {
			Uri string `json:"uri"`
		} `json:"post"`
		Parent struct {
			Type     string `json:"$type"`
			Uri      string `json:"uri"`
			NotFound bool   `json:"notFound"`
		} `json:"parent"`
		Replies []map[string]any `json:"replies"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))

	assert.Equal(views.TypeThreadViewPost, decoded.Type)
	assert.Equal(posts[1].Uri, decoded.Post.Uri)
	assert.Equal(views.TypeNotFoundPost, decoded.Parent.Type)
	assert.Equal(posts[0].Uri, decoded.Parent.Uri)
	assert.True(decoded.Parent.NotFound)
	require.Len(t, decoded.Replies, 1)
	assert.Equal(views.TypeThreadViewPost, decoded.Replies[0]["$type"])

	replies, ok := decoded.Replies[0]["replies"].([]any)
	assert.True(ok)
	assert.Empty(replies)
}
