package feeds

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/bluesky-social/feedview/internal/testutil"
	"github.com/bluesky-social/feedview/models"

	"github.com/stretchr/testify/assert"
)

const modsrc = "did:plc:mod"

func TestWhatsHot(t *testing.T) {
	assert := assert.New(t)
	fx := testutil.NewFixtures(t)

	stale := fx.Post(bob, testutil.Likes(40), testutil.At(fx.Now().Add(-48*time.Hour)))
	p1 := fx.Post(alice, testutil.Likes(5))
	fx.Post(alice, testutil.Likes(1))
	spam := fx.Post(bob, testutil.Likes(3))
	fromSpammer := fx.Post(carol, testutil.Likes(2))
	fx.Post(alice, testutil.Likes(10), testutil.ReplyTo(p1))
	p7 := fx.Post(bob, testutil.Likes(2))
	fromBlocker := fx.Post(dave, testutil.Likes(9))

	fx.Label(modsrc, spam.Uri, "spam")
	fx.Label(modsrc, carol, "spam")
	fx.Block(dave, erin)

	wh := NewWhatsHot(fx.DB, Options{
		HotThreshold: 2,
		HotWindow:    time.Hour,
		DenyLabels:   []string{"spam"},
		Now:          fx.Now,
	})

	assert.Equal([]string{fromBlocker.Uri, p7.Uri, p1.Uri}, itemURIs(drain(t, wh, "", 1)))
	assert.Equal([]string{p7.Uri, p1.Uri}, itemURIs(drain(t, wh, erin, 2)))

	// without a window or deny-list everything above the threshold shows up
	all := NewWhatsHot(fx.DB, Options{HotThreshold: 2})
	assert.Equal([]string{fromBlocker.Uri, p7.Uri, fromSpammer.Uri, spam.Uri, p1.Uri, stale.Uri}, itemURIs(drain(t, all, "", 4)))
}

func TestHotClassic(t *testing.T) {
	assert := assert.New(t)
	fx := testutil.NewFixtures(t)

	var posts []*models.FeedPost
	for i := 0; i < 12; i++ {
		posts = append(posts, fx.Post(alice, testutil.Likes(int64(i%4))))
	}
	fx.Repost(bob, posts[0])
	fx.Repost(carol, posts[0])
	fx.Repost(bob, posts[5])
	flagged := fx.Post(bob, testutil.Likes(50))
	fx.Label(modsrc, flagged.Uri, "gore")

	var expected []models.FeedPost
	assert.NoError(fx.DB.Where("uri <> ?", flagged.Uri).Find(&expected).Error)
	sort.Slice(expected, func(i, j int) bool {
		si := expected[i].LikeCount + expected[i].RepostCount
		sj := expected[j].LikeCount + expected[j].RepostCount
		if si != sj {
			return si > sj
		}
		return strings.Compare(expected[i].Cid, expected[j].Cid) > 0
	})
	var want []string
	for _, p := range expected {
		want = append(want, p.Uri)
	}

	hc := NewHotClassic(fx.DB, Options{DenyLabels: []string{"gore"}})
	for _, limit := range []int{1, 5, 20} {
		rows := drain(t, hc, "", limit)
		assert.Equal(want, itemURIs(rows), "limit %d", limit)
		for _, r := range rows {
			if r.PostURI == posts[0].Uri {
				assert.EqualValues(2, r.Score)
			}
		}
	}
}
