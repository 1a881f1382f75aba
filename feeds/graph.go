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

// WithFriends serves posts liked by accounts the requester follows.
type WithFriends struct {
	db    *gorm.DB
	codec *keyset.Codec[Candidate]
}

func NewWithFriends(db *gorm.DB) *WithFriends {
	return &WithFriends{db: db, codec: SortAtCodec("fi.sort_at", "fi.uri")}
}

func (wf *WithFriends) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	if requester == "" {
		return emptyPage(wf.codec, cursor)
	}

	sb := selectItems().
		Where(sq.Eq{"fi.type": models.FeedItemTypePost}).
		Where(`EXISTS (SELECT 1 FROM like_records lr JOIN follow_records f ON f.target = lr.author
			WHERE f.follower = ? AND lr.subject = fi.post_uri)`, requester)
	sb = sqlutil.Where(sb, social.Exclude(requester, "fi.post_author"))

	return paged(ctx, wf.db, AlgoWithFriends, wf.codec, sb, cursor, limit)
}

// Mutuals serves posts by accounts that follow the requester back.
type Mutuals struct {
	db    *gorm.DB
	codec *keyset.Codec[Candidate]
}

func NewMutuals(db *gorm.DB) *Mutuals {
	return &Mutuals{db: db, codec: SortAtCodec("fi.sort_at", "fi.uri")}
}

func (m *Mutuals) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	if requester == "" {
		return emptyPage(m.codec, cursor)
	}

	sb := selectItems().
		Where(sq.Eq{"fi.type": models.FeedItemTypePost}).
		Where(`fi.post_author IN (SELECT f1.target FROM follow_records f1
			JOIN follow_records f2 ON f2.follower = f1.target AND f2.target = f1.follower
			WHERE f1.follower = ?)`, requester)
	sb = sqlutil.Where(sb, social.Exclude(requester, "fi.post_author"))

	return paged(ctx, m.db, AlgoMutuals, m.codec, sb, cursor, limit)
}

// BestOfFollows ranks accounts followed by the requester's follows (and not
// by the requester) by 1/(1+shared follows), and serves each one's most liked
// top-level post.
type BestOfFollows struct {
	db    *gorm.DB
	codec *keyset.Codec[Candidate]
}

func NewBestOfFollows(db *gorm.DB) *BestOfFollows {
	return &BestOfFollows{db: db, codec: DistanceCodec("r.distance", "r.did")}
}

type rankedAccount struct {
	Did      string  `gorm:"column:did"`
	Distance float64 `gorm:"column:distance"`
}

func (bf *BestOfFollows) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	if requester == "" {
		return emptyPage(bf.codec, cursor)
	}

	ranked := sq.Select("f2.target AS did", "CAST(1 AS DOUBLE PRECISION) / (1 + COUNT(*)) AS distance").
		From("follow_records f1").
		Join("follow_records f2 ON f2.follower = f1.target").
		Where(sq.Eq{"f1.follower": requester}).
		Where(sq.NotEq{"f2.target": requester}).
		Where("NOT EXISTS (SELECT 1 FROM follow_records f3 WHERE f3.follower = ? AND f3.target = f2.target)", requester).
		GroupBy("f2.target")

	sb := sq.Select("r.did", "r.distance").
		FromSelect(ranked, "r").
		Where(`EXISTS (SELECT 1 FROM feed_posts p WHERE p.author = r.did AND p.deleted = ? AND p.reply_parent = '')`, false)
	sb = sqlutil.Where(sb, social.Exclude(requester, "r.did"))

	sb, err := bf.codec.Apply(sb, cursor, limit)
	if err != nil {
		return nil, err
	}

	var accounts []rankedAccount
	if err := sqlutil.Scan(bf.db.WithContext(ctx), sb, &accounts); err != nil {
		return nil, fmt.Errorf("ranking accounts: %w", err)
	}
	if len(accounts) == 0 {
		return &Page{}, nil
	}

	dids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		dids = append(dids, a.Did)
	}

	posts := selectItems("fp.like_count AS score").
		Join("feed_posts fp ON fp.uri = fi.post_uri").
		Where(sq.Eq{
			"fi.type":         models.FeedItemTypePost,
			"fi.reply_parent": "",
			"fp.deleted":      false,
			"fi.post_author":  dids,
		}).
		OrderBy("fi.post_author", "fp.like_count DESC", "fi.sort_at DESC", "fi.uri DESC")

	rows, err := fetch(ctx, bf.db, AlgoBestOfFollows, posts)
	if err != nil {
		return nil, err
	}

	best := make(map[string]Candidate, len(accounts))
	for _, r := range rows {
		if _, ok := best[r.PostAuthor]; !ok {
			best[r.PostAuthor] = r
		}
	}

	out := make([]Candidate, 0, len(accounts))
	for _, a := range accounts {
		c, ok := best[a.Did]
		if !ok {
			continue
		}
		c.Distance = a.Distance
		out = append(out, c)
	}

	// the cursor follows the ranking, so an account whose post vanished
	// between the two queries is skipped rather than revisited
	last := accounts[len(accounts)-1]
	return &Page{
		Rows:   out,
		Cursor: bf.codec.Pack(Candidate{Distance: last.Distance, PostAuthor: last.Did}),
	}, nil
}
