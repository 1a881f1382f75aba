package hydrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/views"

	"golang.org/x/sync/errgroup"
)

// ActorViews returns views of dids as seen by requester. Unknown and
// taken-down accounts are absent.
func (h *Hydrator) ActorViews(ctx context.Context, dids []string, requester string) (map[string]*views.ActorView, error) {
	ctx, span := tracer.Start(ctx, "ActorViews")
	defer span.End()
	defer observe("actors", time.Now())

	out := make(map[string]*views.ActorView)
	dids = dedupe(dids)
	if len(dids) == 0 {
		return out, nil
	}

	var actors []models.ActorInfo
	var filter *social.Filter
	var follows *social.FollowState
	var actorLabels map[string][]*views.Label

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := h.db.WithContext(ectx).
			Where("did IN ? AND taken_down = ?", dids, false).
			Where("NOT EXISTS (SELECT 1 FROM moderation_actions ma WHERE ma.subject_did = actor_infos.did AND ma.subject_uri IS NULL AND ma.action = ? AND ma.reversed_at IS NULL)", models.ModerationActionTakedown).
			Find(&actors).Error
		if err != nil {
			return fmt.Errorf("loading actors: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		filter, err = social.LoadFilter(ectx, h.dir, requester, dids)
		return err
	})
	eg.Go(func() error {
		var err error
		follows, err = h.dir.Follows(ectx, requester, dids)
		return err
	})
	eg.Go(func() error {
		var err error
		actorLabels, err = h.labels.LabelsFor(ectx, dids)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, ai := range actors {
		av := &views.ActorView{
			Did:    ai.Did,
			Handle: ai.Handle,
			Labels: actorLabels[ai.Did],
		}
		if ai.DisplayName != "" {
			dn := ai.DisplayName
			av.DisplayName = &dn
		}
		if ai.AvatarCid != "" && h.images != nil {
			url := h.images.ImageURL(PresetAvatar, ai.Did, ai.AvatarCid)
			av.Avatar = &url
		}
		if av.Labels == nil {
			av.Labels = []*views.Label{}
		}

		if requester != "" && requester != ai.Did {
			av.Viewer = &views.ActorViewerState{
				Muted:      filter.Muted(requester, ai.Did),
				Blocking:   filter.BlockingRecord(requester, ai.Did),
				BlockedBy:  filter.BlockedBy(requester, ai.Did),
				Following:  follows.Following[ai.Did],
				FollowedBy: follows.FollowedBy[ai.Did],
			}
			if av.Viewer.Blocking == "" && filter.Blocking(requester, ai.Did) {
				// a block always surfaces, even without a record uri
				av.Viewer.Blocking = "blocked"
			}
		}

		out[ai.Did] = av
	}

	return out, nil
}
