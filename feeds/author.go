package feeds

import (
	"context"
	"fmt"

	"github.com/bluesky-social/feedview/keyset"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/util/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

const (
	FilterPostsWithReplies      = "posts_with_replies"
	FilterPostsNoReplies        = "posts_no_replies"
	FilterPostsWithMedia        = "posts_with_media"
	FilterPostsAndAuthorThreads = "posts_and_author_threads"
)

// AuthorFeed is one actor's posts and reposts.
type AuthorFeed struct {
	db     *gorm.DB
	actor  string
	filter string
	codec  *keyset.Codec[Candidate]
}

func NewAuthorFeed(db *gorm.DB, actor, filter string) (*AuthorFeed, error) {
	if filter == "" {
		filter = FilterPostsWithReplies
	}
	switch filter {
	case FilterPostsWithReplies, FilterPostsNoReplies, FilterPostsWithMedia, FilterPostsAndAuthorThreads:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}

	return &AuthorFeed{
		db:     db,
		actor:  actor,
		filter: filter,
		codec:  SortAtCodec("fi.sort_at", "fi.uri"),
	}, nil
}

func (af *AuthorFeed) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	sb := selectItems().Where(sq.Eq{"fi.originator": af.actor})

	switch af.filter {
	case FilterPostsNoReplies:
		sb = sb.Where(sq.Or{
			sq.Eq{"fi.type": models.FeedItemTypeRepost},
			sq.Eq{"fi.reply_parent": ""},
		})
	case FilterPostsWithMedia:
		sb = sb.Where(sq.Eq{"fi.type": models.FeedItemTypePost}).
			Where("EXISTS (SELECT 1 FROM post_embed_images pei WHERE pei.post_uri = fi.post_uri)")
	case FilterPostsAndAuthorThreads:
		sb = sb.Where(sq.Or{
			sq.Eq{"fi.type": models.FeedItemTypeRepost},
			sq.Eq{"fi.reply_parent": ""},
			sq.Like{"fi.reply_root": "at://" + af.actor + "/%"},
		})
	}

	sb = sqlutil.Where(sb, social.Exclude(requester, "fi.post_author", "fi.originator"))

	return paged(ctx, af.db, "author", af.codec, sb, cursor, limit)
}
