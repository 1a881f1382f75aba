package feeds

import (
	"context"

	"github.com/bluesky-social/feedview/keyset"
	"github.com/bluesky-social/feedview/labels"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/util"
	"github.com/bluesky-social/feedview/util/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

const scoreExpr = "(fp.like_count + fp.repost_count)"

// popularBase selects top-level, undeleted posts newer than the hot window,
// with visibility and deny-list filters applied.
func popularBase(requester string, opts *Options, extra ...string) sq.SelectBuilder {
	sb := selectItems(extra...).
		Join("feed_posts fp ON fp.uri = fi.post_uri").
		Where(sq.Eq{"fi.type": models.FeedItemTypePost, "fi.reply_parent": "", "fp.deleted": false})

	if opts.HotWindow > 0 {
		sb = sb.Where(sq.GtOrEq{"fi.sort_at": util.SortAt(opts.now().Add(-opts.HotWindow))})
	}

	return sqlutil.Where(sb,
		social.Exclude(requester, "fi.post_author"),
		labels.DenyList(opts.DenyLabels, "fi.post_uri", "fi.post_author"),
	)
}

// WhatsHot serves recent posts above a like threshold, newest first.
type WhatsHot struct {
	db    *gorm.DB
	opts  Options
	codec *keyset.Codec[Candidate]
}

func NewWhatsHot(db *gorm.DB, opts Options) *WhatsHot {
	return &WhatsHot{
		db:    db,
		opts:  opts,
		codec: SortAtCodec("fi.sort_at", "fi.uri"),
	}
}

func (wh *WhatsHot) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	sb := popularBase(requester, &wh.opts).
		Where(sq.GtOrEq{"fp.like_count": wh.opts.HotThreshold})

	return paged(ctx, wh.db, AlgoWhatsHot, wh.codec, sb, cursor, limit)
}

// HotClassic serves recent posts by likes plus reposts, highest first.
type HotClassic struct {
	db    *gorm.DB
	opts  Options
	codec *keyset.Codec[Candidate]
}

func NewHotClassic(db *gorm.DB, opts Options) *HotClassic {
	return &HotClassic{
		db:    db,
		opts:  opts,
		codec: ScoreCodec(scoreExpr, "fi.cid"),
	}
}

func (hc *HotClassic) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	sb := popularBase(requester, &hc.opts, scoreExpr+" AS score")

	return paged(ctx, hc.db, AlgoHotClassic, hc.codec, sb, cursor, limit)
}
