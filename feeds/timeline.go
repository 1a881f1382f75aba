package feeds

import (
	"context"
	"time"

	"github.com/bluesky-social/feedview/keyset"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/util"
	"github.com/bluesky-social/feedview/util/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Timeline merges the requester's own feed items with those of the accounts
// they follow. Each sub-stream is windowed and keyset paginated on its own;
// both share the (sort_at, item uri) order, so the merged page is reseekable
// from the key of its last row.
type Timeline struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
	codec  *keyset.Codec[Candidate]
}

func NewTimeline(db *gorm.DB, opts Options) *Timeline {
	return &Timeline{
		db:     db,
		window: opts.TimelineWindow,
		now:    opts.now,
		codec:  SortAtCodec("fi.sort_at", "fi.uri"),
	}
}

func (tl *Timeline) Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error) {
	if requester == "" {
		return emptyPage(tl.codec, cursor)
	}

	key, err := tl.codec.Unpack(cursor)
	if err != nil {
		return nil, err
	}

	anchor := tl.now()
	if key != nil {
		// Unpack already validated the primary
		anchor, _ = util.ParseTimestamp(key.Primary)
	}

	own := selectItems().Where(sq.Eq{"fi.originator": requester})
	followed := selectItems().
		Where("fi.originator IN (SELECT f.target FROM follow_records f WHERE f.follower = ? AND f.target <> ?)", requester, requester)

	var ownRows, followedRows []Candidate
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		ownRows, err = tl.stream(ctx, "own", own, requester, key, anchor, limit)
		return err
	})
	eg.Go(func() error {
		var err error
		followedRows, err = tl.stream(ctx, "followed", followed, requester, key, anchor, limit)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	p := keyset.Paginate(tl.codec, mergeCandidates(tl.codec, limit, ownRows, followedRows), limit)
	return &Page{Rows: p.Rows, Cursor: p.Cursor}, nil
}

// stream pages one sub-stream. A windowed query that comes back short is
// re-run without the window, so sparse timelines still fill a page.
func (tl *Timeline) stream(ctx context.Context, name string, sb sq.SelectBuilder, requester string, key *keyset.Key, anchor time.Time, limit int) ([]Candidate, error) {
	sb = sqlutil.Where(sb, social.Exclude(requester, "fi.post_author", "fi.originator"))

	if tl.window > 0 {
		windowed, err := tl.codec.ApplyKey(sb.Where(sq.GtOrEq{"fi.sort_at": util.SortAt(anchor.Add(-tl.window))}), key, limit)
		if err != nil {
			return nil, err
		}
		rows, err := fetch(ctx, tl.db, "following", windowed)
		if err != nil {
			return nil, err
		}
		if len(rows) >= limit {
			return rows, nil
		}
		timelineFallbacks.WithLabelValues(name).Inc()
	}

	sb, err := tl.codec.ApplyKey(sb, key, limit)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, tl.db, "following", sb)
}

// mergeCandidates is a k-way merge of streams already sorted in codec order,
// dropping repeated item URIs and stopping at limit rows.
func mergeCandidates(codec *keyset.Codec[Candidate], limit int, streams ...[]Candidate) []Candidate {
	heads := make([]int, len(streams))
	seen := make(map[string]struct{})
	var out []Candidate

	for len(out) < limit {
		best := -1
		for i, s := range streams {
			if heads[i] >= len(s) {
				continue
			}
			if best < 0 || codec.Before(s[heads[i]], streams[best][heads[best]]) {
				best = i
			}
		}
		if best < 0 {
			break
		}

		c := streams[best][heads[best]]
		heads[best]++
		if _, ok := seen[c.ItemURI]; ok {
			continue
		}
		seen[c.ItemURI] = struct{}{}
		out = append(out, c)
	}

	return out
}
