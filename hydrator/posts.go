package hydrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bluesky-social/feedview/models"

	"golang.org/x/sync/errgroup"
)

// PostInfo is a stored post plus the viewer's own engagement with it.
type PostInfo struct {
	Uri         string
	Cid         string
	Author      string
	Text        string
	ReplyParent string
	ReplyRoot   string
	SelfLabels  []string
	Langs       []string
	CreatedAt   string
	IndexedAt   time.Time
	SortAt      string

	LikeCount   int64
	RepostCount int64
	ReplyCount  int64

	ViewerLike   string
	ViewerRepost string
}

// PostInfos returns the posts among uris that exist and are visible to
// anyone. Deleted and taken-down posts are absent.
func (h *Hydrator) PostInfos(ctx context.Context, uris []string, requester string) (map[string]*PostInfo, error) {
	ctx, span := tracer.Start(ctx, "PostInfos")
	defer span.End()
	defer observe("posts", time.Now())

	out := make(map[string]*PostInfo)
	uris = dedupe(uris)
	if len(uris) == 0 {
		return out, nil
	}

	var posts []models.FeedPost
	var likes []models.LikeRecord
	var reposts []models.RepostRecord

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := h.db.WithContext(ectx).
			Where("uri IN ? AND deleted = ?", uris, false).
			Where("NOT EXISTS (SELECT 1 FROM moderation_actions ma WHERE ma.subject_uri = feed_posts.uri AND ma.action = ? AND ma.reversed_at IS NULL)", models.ModerationActionTakedown).
			Find(&posts).Error
		if err != nil {
			return fmt.Errorf("loading posts: %w", err)
		}
		return nil
	})
	if requester != "" {
		eg.Go(func() error {
			err := h.db.WithContext(ectx).Select("uri", "subject").
				Where("author = ? AND subject IN ?", requester, uris).
				Find(&likes).Error
			if err != nil {
				return fmt.Errorf("loading viewer likes: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			err := h.db.WithContext(ectx).Select("uri", "subject").
				Where("author = ? AND subject IN ?", requester, uris).
				Find(&reposts).Error
			if err != nil {
				return fmt.Errorf("loading viewer reposts: %w", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, p := range posts {
		out[p.Uri] = &PostInfo{
			Uri:         p.Uri,
			Cid:         p.Cid,
			Author:      p.Author,
			Text:        p.Text,
			ReplyParent: p.ReplyParent,
			ReplyRoot:   p.ReplyRoot,
			SelfLabels:  p.SelfLabels,
			Langs:       p.Langs,
			CreatedAt:   p.CreatedAt,
			IndexedAt:   p.IndexedAt,
			SortAt:      p.SortAt,
			LikeCount:   p.LikeCount,
			RepostCount: p.RepostCount,
			ReplyCount:  p.ReplyCount,
		}
	}
	for _, l := range likes {
		if pi, ok := out[l.Subject]; ok {
			pi.ViewerLike = l.Uri
		}
	}
	for _, r := range reposts {
		if pi, ok := out[r.Subject]; ok {
			pi.ViewerRepost = r.Uri
		}
	}

	return out, nil
}
