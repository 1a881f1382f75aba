package social

import (
	"context"
	"testing"

	"github.com/bluesky-social/feedview/internal/testutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
)

const (
	alice = "did:plc:alice"
	bob   = "did:plc:bob"
	carol = "did:plc:carol"
	dave  = "did:plc:dave"
)

func TestFilter(t *testing.T) {
	assert := assert.New(t)

	blocks := PairSet{}
	blocks.Add(alice, bob, "at://did:plc:alice/app.bsky.graph.block/1")
	blocks.Add(carol, alice, "at://did:plc:carol/app.bsky.graph.block/1")
	f := NewFilter(blocks, NewDIDSet(dave))

	assert.True(f.Blocking(alice, bob))
	assert.Equal("at://did:plc:alice/app.bsky.graph.block/1", f.BlockingRecord(alice, bob))
	assert.Equal("", f.BlockingRecord(alice, carol))
	assert.False(f.BlockedBy(alice, bob))
	assert.True(f.BlockedBy(alice, carol))
	assert.False(f.Blocking(alice, carol))

	assert.True(f.Blocked(alice, bob))
	assert.True(f.Blocked(alice, carol))
	assert.True(f.Blocked(alice, dave, carol))
	assert.False(f.Blocked(alice, dave))
	assert.True(f.Blocked(bob, alice))

	assert.True(f.Muted(alice, dave))
	assert.True(f.Muted(alice, bob, dave))
	assert.False(f.Muted(alice, bob))
	assert.False(f.Muted(alice, alice))

	// anonymous viewers see everything
	assert.False(f.Blocked("", bob, carol))
	assert.False(f.Muted("", dave))
}

func TestGormDirectory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := testutil.NewFixtures(t)

	ab := fx.Block(alice, bob)
	fx.Block(carol, alice)
	fx.Block(bob, carol)
	fx.Mute(alice, dave)
	fx.Mute(bob, dave)
	fa := fx.Follow(alice, bob)
	fb := fx.Follow(carol, alice)

	dir := NewGormDirectory(fx.DB)

	pairs, err := dir.BlockedPairs(ctx, []string{alice, bob, carol})
	assert.NoError(err)
	assert.Len(pairs, 3)
	assert.True(pairs.Has(alice, bob))
	assert.Equal(ab.Uri, pairs[Pair{A: alice, B: bob}])
	assert.True(pairs.Has(carol, alice))

	pairs, err = dir.BlockedPairs(ctx, []string{alice, bob})
	assert.NoError(err)
	assert.Len(pairs, 1)

	muted, err := dir.MutedBy(ctx, alice, []string{bob, dave})
	assert.NoError(err)
	assert.Equal(NewDIDSet(dave), muted)

	fs, err := dir.Follows(ctx, alice, []string{bob, carol})
	assert.NoError(err)
	assert.Equal(map[string]string{bob: fa.Uri}, fs.Following)
	assert.Equal(map[string]string{carol: fb.Uri}, fs.FollowedBy)

	filter, err := LoadFilter(ctx, dir, alice, []string{bob, carol, dave})
	assert.NoError(err)
	assert.True(filter.Blocked(alice, bob))
	assert.True(filter.Blocked(alice, carol))
	assert.True(filter.Muted(alice, dave))
	assert.False(filter.Blocked(alice, dave))

	filter, err = LoadFilter(ctx, dir, "", []string{bob})
	assert.NoError(err)
	assert.False(filter.Blocked("", bob))
}

func TestExcludePredicates(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(ExcludeBlocked("", "author"))
	assert.Nil(Exclude("", "author"))

	sql, args, err := ExcludeMuted(alice, "fi.post_author").ToSql()
	assert.NoError(err)
	assert.Equal("NOT EXISTS (SELECT 1 FROM mute_records m WHERE m.muter = ? AND (m.subject = fi.post_author))", sql)
	assert.Equal([]any{alice}, args)

	_, args, err = ExcludeBlocked(alice, "fi.post_author", "fi.originator").ToSql()
	assert.NoError(err)
	assert.Len(args, 4)
}

func TestExcludeAgainstStore(t *testing.T) {
	assert := assert.New(t)
	fx := testutil.NewFixtures(t)

	fx.Post(bob)
	fx.Post(carol)
	p := fx.Post(dave)
	fx.Repost(bob, p)
	fx.Post(alice)

	fx.Block(bob, alice)
	fx.Mute(alice, carol)

	sb := sq.Select("fi.uri").From("feed_items fi").
		Where(Exclude(alice, "fi.post_author", "fi.originator")).
		OrderBy("fi.uri")
	sql, args, err := sb.ToSql()
	assert.NoError(err)

	var uris []string
	assert.NoError(fx.DB.Raw(sql, args...).Scan(&uris).Error)

	// bob's post and bob's repost of dave are gone, carol is muted
	assert.Len(uris, 2)
	for _, u := range uris {
		assert.NotContains(u, bob)
		assert.NotContains(u, carol)
	}
}
