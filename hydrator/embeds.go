package hydrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/util"
	"github.com/bluesky-social/feedview/views"

	"golang.org/x/sync/errgroup"
)

// MaxEmbedDepth is the deepest level at which a quoted record still gets its
// own embeds. A post (depth 0) can show a quote whose embeds show one more
// quote, and that innermost quote is rendered without embeds.
const MaxEmbedDepth = 1

// Embeds returns the embed view of each post in uris that has one. depth is
// the nesting level of uris themselves; callers start at 0.
func (h *Hydrator) Embeds(ctx context.Context, uris []string, requester string, depth int) (map[string]*views.Embed, error) {
	ctx, span := tracer.Start(ctx, "Embeds")
	defer span.End()
	defer observe("embeds", time.Now())

	out := make(map[string]*views.Embed)
	uris = dedupe(uris)
	if len(uris) == 0 {
		return out, nil
	}

	var images []models.PostEmbedImage
	var externals []models.PostEmbedExternal
	var records []models.PostEmbedRecord

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := h.db.WithContext(ectx).Where("post_uri IN ?", uris).Order("position ASC").Find(&images).Error; err != nil {
			return fmt.Errorf("loading image embeds: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := h.db.WithContext(ectx).Where("post_uri IN ?", uris).Find(&externals).Error; err != nil {
			return fmt.Errorf("loading external embeds: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := h.db.WithContext(ectx).Where("post_uri IN ?", uris).Find(&records).Error; err != nil {
			return fmt.Errorf("loading record embeds: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	quoted, err := h.quotedRecords(ctx, records, requester, depth)
	if err != nil {
		return nil, err
	}

	media := make(map[string]*views.Embed)
	for _, img := range images {
		e, ok := media[img.PostUri]
		if !ok {
			e = &views.Embed{EmbedImages: &views.EmbedImages{}}
			media[img.PostUri] = e
		}
		did := util.DidFromUri(img.PostUri)
		e.EmbedImages.Images = append(e.EmbedImages.Images, &views.ImageView{
			Thumb:    h.imageURL(PresetFeedThumbnail, did, img.ImageCid),
			Fullsize: h.imageURL(PresetFeedFullsize, did, img.ImageCid),
			Alt:      img.Alt,
		})
	}
	for _, ext := range externals {
		if _, ok := media[ext.PostUri]; ok {
			continue
		}
		ev := &views.ExternalView{
			Uri:         ext.Uri,
			Title:       ext.Title,
			Description: ext.Description,
		}
		if ext.ThumbCid != "" {
			thumb := h.imageURL(PresetFeedThumbnail, util.DidFromUri(ext.PostUri), ext.ThumbCid)
			ev.Thumb = &thumb
		}
		media[ext.PostUri] = &views.Embed{EmbedExternal: &views.EmbedExternal{External: ev}}
	}

	for uri, m := range media {
		out[uri] = m
	}
	for _, r := range records {
		rec := &views.EmbedRecord{Record: quoted[r.EmbedUri]}
		if m, ok := media[r.PostUri]; ok {
			out[r.PostUri] = &views.Embed{EmbedRecordWithMedia: &views.EmbedRecordWithMedia{Record: rec, Media: m}}
		} else {
			out[r.PostUri] = &views.Embed{EmbedRecord: rec}
		}
	}

	return out, nil
}

// quotedRecords hydrates the targets of record embeds found at depth. Their
// own embeds are only resolved while depth < MaxEmbedDepth.
func (h *Hydrator) quotedRecords(ctx context.Context, records []models.PostEmbedRecord, requester string, depth int) (map[string]*views.EmbedRecordView, error) {
	out := make(map[string]*views.EmbedRecordView)
	if len(records) == 0 {
		return out, nil
	}

	targets := make([]string, 0, len(records))
	dids := make([]string, 0, len(records))
	for _, r := range records {
		targets = append(targets, r.EmbedUri)
		dids = append(dids, util.DidFromUri(r.EmbedUri))
	}

	var (
		actors map[string]*views.ActorView
		posts  map[string]*PostInfo
		nested map[string]*views.Embed
		labels map[string][]*views.Label
	)

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		actors, err = h.ActorViews(ectx, dids, requester)
		return err
	})
	eg.Go(func() error {
		var err error
		posts, err = h.PostInfos(ectx, targets, requester)
		return err
	})
	eg.Go(func() error {
		var err error
		labels, err = h.labels.LabelsFor(ectx, targets)
		return err
	})
	if depth < MaxEmbedDepth {
		eg.Go(func() error {
			var err error
			nested, err = h.Embeds(ectx, targets, requester, depth+1)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, uri := range dedupe(targets) {
		pi := posts[uri]
		var author *views.ActorView
		if pi != nil {
			author = actors[pi.Author]
		}

		switch {
		case pi == nil || author == nil:
			h.log.Debug("quoted record not found", "uri", uri, "depth", depth)
			out[uri] = &views.EmbedRecordView{ViewNotFound: &views.ViewNotFound{Uri: uri, NotFound: true}}
		case author.HasBlock():
			out[uri] = &views.EmbedRecordView{ViewBlocked: &views.ViewBlocked{
				Uri:     uri,
				Blocked: true,
				Author:  &views.BlockedAuthor{Did: author.Did, Viewer: author.Viewer},
			}}
		default:
			vr := &views.ViewRecord{
				Uri:         pi.Uri,
				Cid:         pi.Cid,
				Author:      author,
				Value:       postRecord(pi),
				Labels:      postLabels(pi, labels[uri]),
				ReplyCount:  &pi.ReplyCount,
				RepostCount: &pi.RepostCount,
				LikeCount:   &pi.LikeCount,
				IndexedAt:   indexedAt(pi),
			}
			if e, ok := nested[uri]; ok {
				vr.Embeds = []*views.Embed{e}
			}
			out[uri] = &views.EmbedRecordView{ViewRecord: vr}
		}
	}

	return out, nil
}

func (h *Hydrator) imageURL(preset, did, cid string) string {
	if h.images == nil {
		return cid
	}
	return h.images.ImageURL(preset, did, cid)
}
