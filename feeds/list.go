package feeds

import (
	"context"

	"github.com/bluesky-social/feedview/keyset"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/util/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// ListFeed serves the original posts of a fixed set of authors.
type ListFeed struct {
	db    *gorm.DB
	name  string
	dids  []string
	codec *keyset.Codec[Candidate]
}

func NewListFeed(db *gorm.DB, name string, dids []string) *ListFeed {
	return &ListFeed{
		db:    db,
		name:  name,
		dids:  dids,
		codec: SortAtCodec("fi.sort_at", "fi.uri"),
	}
}

func (lf *ListFeed) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	if len(lf.dids) == 0 {
		return emptyPage(lf.codec, cursor)
	}

	sb := selectItems().
		Where(sq.Eq{"fi.type": models.FeedItemTypePost, "fi.post_author": lf.dids})
	sb = sqlutil.Where(sb, social.Exclude(requester, "fi.post_author"))

	return paged(ctx, lf.db, lf.name, lf.codec, sb, cursor, limit)
}
