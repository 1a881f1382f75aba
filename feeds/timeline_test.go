package feeds

import (
	"testing"
	"time"

	"github.com/bluesky-social/feedview/internal/testutil"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/util"

	"github.com/stretchr/testify/assert"
)

func TestMergeCandidates(t *testing.T) {
	assert := assert.New(t)
	codec := SortAtCodec("sort_at", "uri")

	ts := func(sec int) string {
		return util.SortAt(time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC))
	}

	own := []Candidate{
		{ItemURI: "at://did:plc:a/p/3", SortAt: ts(9)},
		{ItemURI: "at://did:plc:a/p/2", SortAt: ts(5)},
		{ItemURI: "at://did:plc:a/p/1", SortAt: ts(1)},
	}
	followed := []Candidate{
		{ItemURI: "at://did:plc:b/p/3", SortAt: ts(9)},
		{ItemURI: "at://did:plc:b/p/2", SortAt: ts(5)},
		{ItemURI: "at://did:plc:a/p/2", SortAt: ts(5)},
		{ItemURI: "at://did:plc:b/p/1", SortAt: ts(0)},
	}

	uris := itemURIs(mergeCandidates(codec, 10, own, followed))
	// equal timestamps order by item uri, descending; repeats are dropped
	assert.Equal([]string{
		"at://did:plc:b/p/3",
		"at://did:plc:a/p/3",
		"at://did:plc:b/p/2",
		"at://did:plc:a/p/2",
		"at://did:plc:a/p/1",
		"at://did:plc:b/p/1",
	}, uris)

	// the result does not depend on stream order
	assert.Equal(uris, itemURIs(mergeCandidates(codec, 10, followed, own)))

	assert.Equal(uris[:3], itemURIs(mergeCandidates(codec, 3, own, followed)))
	assert.Empty(mergeCandidates(codec, 3, nil, nil))
}

func TestTimeline(t *testing.T) {
	assert := assert.New(t)
	fx := testutil.NewFixtures(t)

	fx.Follow(alice, bob)
	fx.Follow(alice, carol)
	fx.Follow(alice, frank)
	fx.Follow(alice, alice)
	fx.Block(alice, erin)
	fx.Mute(alice, frank)

	// alice and bob post at the same instant several times
	for i := 0; i < 4; i++ {
		same := fx.Now().Add(time.Second)
		fx.Post(alice, testutil.At(same))
		fx.Post(bob, testutil.At(same))
		fx.Post(carol)
	}
	for i := 0; i < 6; i++ {
		fx.Post(bob)
	}
	fx.Post(alice)
	daves := fx.Post(dave)
	erins := fx.Post(erin)
	fx.Repost(carol, daves)
	fx.Repost(carol, erins)
	fx.Repost(alice, daves)
	fx.Post(frank)
	fx.Post(dave)

	expected := expectedItems(t, fx, func(it models.FeedItem) bool {
		switch it.Originator {
		case alice, bob, carol:
			return it.PostAuthor != erin
		}
		return false
	})
	assert.Len(expected, 21)

	for _, window := range []time.Duration{0, 5 * time.Second, time.Hour} {
		tl := NewTimeline(fx.DB, Options{TimelineWindow: window, Now: fx.Now})
		for _, limit := range []int{1, 4, 9, 30} {
			got := itemURIs(drain(t, tl, alice, limit))
			assertNoDuplicates(t, got)
			assert.Equal(expected, got, "window %s limit %d", window, limit)
		}
	}

	tl := NewTimeline(fx.DB, Options{})
	assert.Empty(drain(t, tl, "", 10))
}

func TestTimelineTieBreak(t *testing.T) {
	assert := assert.New(t)
	fx := testutil.NewFixtures(t)

	fx.Follow(alice, bob)
	same := fx.Now().Add(time.Minute)
	a := fx.Post(alice, testutil.At(same))
	b := fx.Post(bob, testutil.At(same))
	older := fx.Post(bob)

	tl := NewTimeline(fx.DB, Options{})
	for i := 0; i < 3; i++ {
		// the same request always yields the same order
		assert.Equal([]string{b.Uri, a.Uri, older.Uri}, itemURIs(drain(t, tl, alice, 1)))
		assert.Equal([]string{b.Uri, a.Uri, older.Uri}, itemURIs(drain(t, tl, alice, 2)))
	}
}
