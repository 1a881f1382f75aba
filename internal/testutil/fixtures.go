package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/util"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixtures writes index rows the way the write path would, with a
// deterministic clock that advances one second per record.
type Fixtures struct {
	t  *testing.T
	DB *gorm.DB

	clock time.Time
	seq   int
}

func NewFixtures(t *testing.T) *Fixtures {
	return &Fixtures{
		t:     t,
		DB:    TestDB(t),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *Fixtures) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// Now returns the fixture clock without advancing it.
func (f *Fixtures) Now() time.Time {
	return f.clock
}

func (f *Fixtures) rkey() string {
	f.seq++
	return fmt.Sprintf("3k%06d", f.seq)
}

func (f *Fixtures) create(v any) {
	f.t.Helper()
	require.NoError(f.t, f.DB.Create(v).Error)
}

func (f *Fixtures) Actor(did, handle string) *models.ActorInfo {
	ai := &models.ActorInfo{
		Did:         did,
		Handle:      handle,
		DisplayName: handle,
		AvatarCid:   "bafkavatar" + handle,
	}
	f.create(ai)
	return ai
}

// DeleteActor removes the account row, as an account deletion would.
func (f *Fixtures) DeleteActor(did string) {
	require.NoError(f.t, f.DB.Where("did = ?", did).Delete(&models.ActorInfo{}).Error)
}

func (f *Fixtures) TakedownActor(did string) {
	require.NoError(f.t, f.DB.Model(&models.ActorInfo{}).Where("did = ?", did).Update("taken_down", true).Error)
}

type PostOption func(*models.FeedPost)

func Text(s string) PostOption {
	return func(p *models.FeedPost) { p.Text = s }
}

func At(t time.Time) PostOption {
	return func(p *models.FeedPost) {
		p.CreatedAt = util.SortAt(t)
		p.SortAt = util.SortAt(t)
		p.IndexedAt = t
	}
}

func SelfLabels(vals ...string) PostOption {
	return func(p *models.FeedPost) { p.SelfLabels = vals }
}

func Likes(n int64) PostOption {
	return func(p *models.FeedPost) { p.LikeCount = n }
}

func ReplyTo(parent *models.FeedPost) PostOption {
	return func(p *models.FeedPost) {
		p.ReplyParent = parent.Uri
		p.ReplyRoot = parent.ReplyRoot
		if p.ReplyRoot == "" {
			p.ReplyRoot = parent.Uri
		}
	}
}

// Post creates a post, its feed item and, for replies, its closure rows.
func (f *Fixtures) Post(author string, opts ...PostOption) *models.FeedPost {
	f.t.Helper()

	now := f.tick()
	rkey := f.rkey()
	p := &models.FeedPost{
		Uri:       util.RecordUri(author, models.CollectionPost, rkey),
		Cid:       "bafypost" + rkey,
		Author:    author,
		Rkey:      rkey,
		Text:      "post " + rkey,
		CreatedAt: util.SortAt(now),
		IndexedAt: now,
		SortAt:    util.SortAt(now),
	}
	for _, o := range opts {
		o(p)
	}
	f.create(p)

	f.create(&models.FeedItem{
		Uri:         p.Uri,
		Cid:         p.Cid,
		Type:        models.FeedItemTypePost,
		PostUri:     p.Uri,
		PostAuthor:  author,
		Originator:  author,
		ReplyParent: p.ReplyParent,
		ReplyRoot:   p.ReplyRoot,
		SortAt:      p.SortAt,
	})

	if p.ReplyParent != "" {
		f.create(&models.PostHierarchy{Uri: p.Uri, Ancestor: p.ReplyParent, Depth: 1})

		var above []models.PostHierarchy
		require.NoError(f.t, f.DB.Where("uri = ?", p.ReplyParent).Find(&above).Error)
		for _, h := range above {
			f.create(&models.PostHierarchy{Uri: p.Uri, Ancestor: h.Ancestor, Depth: h.Depth + 1})
		}

		require.NoError(f.t, f.DB.Model(&models.FeedPost{}).Where("uri = ?", p.ReplyParent).
			Update("reply_count", gorm.Expr("reply_count + 1")).Error)
	}

	return p
}

// DeletePost marks a post deleted, as a record deletion would.
func (f *Fixtures) DeletePost(p *models.FeedPost) {
	require.NoError(f.t, f.DB.Model(&models.FeedPost{}).Where("uri = ?", p.Uri).Update("deleted", true).Error)
	require.NoError(f.t, f.DB.Where("post_uri = ?", p.Uri).Delete(&models.FeedItem{}).Error)
}

func (f *Fixtures) Repost(author string, p *models.FeedPost) *models.FeedItem {
	f.t.Helper()

	now := f.tick()
	rkey := f.rkey()
	rr := &models.RepostRecord{
		Uri:       util.RecordUri(author, models.CollectionRepost, rkey),
		Cid:       "bafyrepost" + rkey,
		Author:    author,
		Subject:   p.Uri,
		CreatedAt: util.SortAt(now),
		IndexedAt: now,
	}
	f.create(rr)

	fi := &models.FeedItem{
		Uri:         rr.Uri,
		Cid:         rr.Cid,
		Type:        models.FeedItemTypeRepost,
		PostUri:     p.Uri,
		PostAuthor:  p.Author,
		Originator:  author,
		ReplyParent: p.ReplyParent,
		ReplyRoot:   p.ReplyRoot,
		SortAt:      util.SortAt(now),
	}
	f.create(fi)

	require.NoError(f.t, f.DB.Model(&models.FeedPost{}).Where("uri = ?", p.Uri).
		Update("repost_count", gorm.Expr("repost_count + 1")).Error)
	return fi
}

func (f *Fixtures) Like(author string, p *models.FeedPost) *models.LikeRecord {
	f.t.Helper()

	now := f.tick()
	rkey := f.rkey()
	lr := &models.LikeRecord{
		Uri:       util.RecordUri(author, models.CollectionLike, rkey),
		Cid:       "bafylike" + rkey,
		Author:    author,
		Subject:   p.Uri,
		CreatedAt: util.SortAt(now),
		IndexedAt: now,
	}
	f.create(lr)

	require.NoError(f.t, f.DB.Model(&models.FeedPost{}).Where("uri = ?", p.Uri).
		Update("like_count", gorm.Expr("like_count + 1")).Error)
	return lr
}

func (f *Fixtures) Follow(follower, target string) *models.FollowRecord {
	fr := &models.FollowRecord{
		Uri:       util.RecordUri(follower, models.CollectionFollow, f.rkey()),
		Follower:  follower,
		Target:    target,
		CreatedAt: util.SortAt(f.tick()),
	}
	f.create(fr)
	return fr
}

// Block records that author blocks subject.
func (f *Fixtures) Block(author, subject string) *models.BlockRecord {
	br := &models.BlockRecord{
		Uri:       util.RecordUri(author, models.CollectionBlock, f.rkey()),
		Author:    author,
		Subject:   subject,
		CreatedAt: util.SortAt(f.tick()),
	}
	f.create(br)
	return br
}

func (f *Fixtures) Mute(muter, subject string) {
	f.create(&models.MuteRecord{Muter: muter, Subject: subject})
}

func (f *Fixtures) Label(src, subject, val string) *models.Label {
	l := &models.Label{
		Src: src,
		Uri: subject,
		Val: val,
		Cts: util.SortAt(f.tick()),
	}
	f.create(l)
	return l
}

func (f *Fixtures) NegateLabel(src, subject, val string) {
	f.create(&models.Label{
		Src: src,
		Uri: subject,
		Val: val,
		Neg: true,
		Cts: util.SortAt(f.tick()),
	})
}

func (f *Fixtures) EmbedImages(p *models.FeedPost, cids ...string) {
	for i, c := range cids {
		f.create(&models.PostEmbedImage{PostUri: p.Uri, Position: i, ImageCid: c, Alt: fmt.Sprintf("image %d", i)})
	}
}

func (f *Fixtures) EmbedExternal(p *models.FeedPost, uri, title string) {
	f.create(&models.PostEmbedExternal{PostUri: p.Uri, Uri: uri, Title: title, Description: title + " description"})
}

func (f *Fixtures) EmbedRecord(p *models.FeedPost, target *models.FeedPost) {
	f.create(&models.PostEmbedRecord{PostUri: p.Uri, EmbedUri: target.Uri, EmbedCid: target.Cid})
}

func (f *Fixtures) TakedownPost(p *models.FeedPost) {
	uri := p.Uri
	f.create(&models.ModerationAction{
		Action:       models.ModerationActionTakedown,
		SubjectDid:   p.Author,
		SubjectUri:   &uri,
		Reason:       "test",
		CreatedAt:    f.tick(),
		CreatedByDid: "did:plc:moderator",
	})
}
