// Package appview serves hydrated feeds and threads: it runs a candidate
// strategy, hydrates the page in one batch and returns views plus the next
// cursor.
package appview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/feedview/feeds"
	"github.com/bluesky-social/feedview/hydrator"
	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/thread"
	"github.com/bluesky-social/feedview/views"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("appview")

var ErrInvalidRequest = errors.New("invalid request")

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type FeedGenerator struct {
	db       *gorm.DB
	registry *feeds.Registry
	hyd      *hydrator.Hydrator
	threads  *thread.Composer

	log *slog.Logger
}

func NewFeedGenerator(db *gorm.DB, registry *feeds.Registry, hyd *hydrator.Hydrator, threads *thread.Composer, log *slog.Logger) *FeedGenerator {
	if log == nil {
		log = slog.Default().With("system", "appview")
	}
	return &FeedGenerator{
		db:       db,
		registry: registry,
		hyd:      hyd,
		threads:  threads,
		log:      log,
	}
}

type FeedPage struct {
	Feed   []*views.FeedViewPost `json:"feed"`
	Cursor string                `json:"cursor,omitempty"`
}

// clampLimit maps a missing limit to the default and caps the rest.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ListFeed serves one page of a registered algorithm.
func (fg *FeedGenerator) ListFeed(ctx context.Context, requester, algo, cursor string, limit int) (*FeedPage, error) {
	ctx, span := tracer.Start(ctx, "ListFeed")
	defer span.End()
	span.SetAttributes(attribute.String("algo", algo))

	s, err := fg.registry.Get(algo)
	if err != nil {
		return nil, err
	}
	return fg.page(ctx, algo, s, requester, cursor, limit)
}

// GetTimeline is the requester's following feed.
func (fg *FeedGenerator) GetTimeline(ctx context.Context, requester, cursor string, limit int) (*FeedPage, error) {
	if requester == "" {
		return nil, fmt.Errorf("%w: timeline requires a viewer", ErrInvalidRequest)
	}
	return fg.ListFeed(ctx, requester, feeds.AlgoFollowing, cursor, limit)
}

func (fg *FeedGenerator) GetAuthorFeed(ctx context.Context, requester, actor, filter, cursor string, limit int) (*FeedPage, error) {
	ctx, span := tracer.Start(ctx, "GetAuthorFeed")
	defer span.End()
	span.SetAttributes(attribute.String("actor", actor), attribute.String("filter", filter))

	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}

	s, err := feeds.NewAuthorFeed(fg.db, actor, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return fg.page(ctx, "author", s, requester, cursor, limit)
}

func (fg *FeedGenerator) GetPostThread(ctx context.Context, requester, uri string, depth, parentHeight int) (*views.ThreadNode, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues("thread").Observe(time.Since(start).Seconds())
	}()

	if uri == "" {
		return nil, fmt.Errorf("%w: uri is required", ErrInvalidRequest)
	}
	return fg.threads.GetThread(ctx, requester, uri, depth, parentHeight)
}

func (fg *FeedGenerator) page(ctx context.Context, algo string, s feeds.Strategy, requester, cursor string, limit int) (*FeedPage, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(algo).Observe(time.Since(start).Seconds())
	}()

	limit = clampLimit(limit)
	page, err := s.Candidates(ctx, requester, cursor, limit)
	if err != nil {
		return nil, err
	}

	items, err := fg.hydrateFeed(ctx, requester, page.Rows)
	if err != nil {
		return nil, err
	}

	return &FeedPage{Feed: items, Cursor: page.Cursor}, nil
}

// hydrateFeed resolves every post, reply context and reposter of rows in a
// single hydration pass. Items whose post did not survive hydration are
// dropped; the cursor still advances past them.
func (fg *FeedGenerator) hydrateFeed(ctx context.Context, requester string, rows []feeds.Candidate) ([]*views.FeedViewPost, error) {
	out := make([]*views.FeedViewPost, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	var uris, reposters []string
	for _, r := range rows {
		uris = append(uris, r.PostURI)
		if r.ReplyParent != "" {
			uris = append(uris, r.ReplyParent)
		}
		if r.ReplyRoot != "" {
			uris = append(uris, r.ReplyRoot)
		}
		if r.Kind == models.FeedItemTypeRepost {
			reposters = append(reposters, r.Originator)
		}
	}

	st, err := fg.hyd.Hydrate(ctx, uris, requester, reposters...)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		res := hydrator.ComposePostView(r.PostURI, st)
		if res.PostView == nil {
			itemsDropped.WithLabelValues("post").Inc()
			continue
		}

		fvp := &views.FeedViewPost{Post: res.PostView}
		if r.ReplyParent != "" {
			root := r.ReplyRoot
			if root == "" {
				root = r.ReplyParent
			}
			fvp.Reply = &views.ReplyContext{
				Root:   hydrator.ComposePostView(root, st),
				Parent: hydrator.ComposePostView(r.ReplyParent, st),
			}
		}

		if r.Kind == models.FeedItemTypeRepost {
			by := st.Actors[r.Originator]
			if by == nil || by.HasBlock() {
				itemsDropped.WithLabelValues("reposter").Inc()
				continue
			}
			fvp.Reason = &views.ReasonRepost{
				LexiconTypeID: views.TypeReasonRepost,
				By:            by,
				IndexedAt:     r.SortAt,
			}
		}

		out = append(out, fvp)
	}

	fg.log.Debug("hydrated feed page", "rows", len(rows), "items", len(out))
	return out, nil
}
