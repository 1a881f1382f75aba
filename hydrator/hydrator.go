// Package hydrator turns post URIs into fully populated views for one viewer.
//
// Every lookup is batched: one query per table per call, never one per row.
// Missing or hidden content never fails a call; it is simply absent from the
// returned maps, and ComposePostView renders the absence as a placeholder.
package hydrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/feedview/labels"
	"github.com/bluesky-social/feedview/social"
	"github.com/bluesky-social/feedview/util"
	"github.com/bluesky-social/feedview/views"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("hydrator")

// ImageURLBuilder turns a blob reference into a client-facing URL.
type ImageURLBuilder interface {
	ImageURL(preset, did, cid string) string
}

const (
	PresetAvatar        = "avatar"
	PresetFeedThumbnail = "feed_thumbnail"
	PresetFeedFullsize  = "feed_fullsize"
)

// CDNImages builds URLs against an image CDN in the form
// {endpoint}/img/{preset}/plain/{did}/{cid}@jpeg.
type CDNImages struct {
	Endpoint string
}

func (c *CDNImages) ImageURL(preset, did, cid string) string {
	return fmt.Sprintf("%s/img/%s/plain/%s/%s@jpeg", c.Endpoint, preset, did, cid)
}

type Hydrator struct {
	db     *gorm.DB
	dir    social.Directory
	labels labels.Store
	images ImageURLBuilder

	log *slog.Logger
}

func NewHydrator(db *gorm.DB, dir social.Directory, ls labels.Store, images ImageURLBuilder, log *slog.Logger) *Hydrator {
	if log == nil {
		log = slog.Default().With("system", "hydrator")
	}
	return &Hydrator{
		db:     db,
		dir:    dir,
		labels: ls,
		images: images,
		log:    log,
	}
}

// State is everything hydrated for one request.
type State struct {
	Requester string

	Actors map[string]*views.ActorView
	Posts  map[string]*PostInfo
	Embeds map[string]*views.Embed
	Labels map[string][]*views.Label
}

// Hydrate resolves uris, their authors and any extra actors (reposters,
// for example) concurrently.
func (h *Hydrator) Hydrate(ctx context.Context, uris []string, requester string, extraDids ...string) (*State, error) {
	ctx, span := tracer.Start(ctx, "Hydrate")
	defer span.End()
	span.SetAttributes(attribute.Int("uris", len(uris)))

	uris = dedupe(uris)
	dids := make([]string, 0, len(uris)+len(extraDids))
	for _, u := range uris {
		if did := util.DidFromUri(u); did != "" {
			dids = append(dids, did)
		}
	}
	dids = dedupe(append(dids, extraDids...))

	st := &State{Requester: requester}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		st.Actors, err = h.ActorViews(ctx, dids, requester)
		return err
	})
	eg.Go(func() error {
		var err error
		st.Posts, err = h.PostInfos(ctx, uris, requester)
		return err
	})
	eg.Go(func() error {
		var err error
		st.Embeds, err = h.Embeds(ctx, uris, requester, 0)
		return err
	})
	eg.Go(func() error {
		var err error
		st.Labels, err = h.labels.LabelsFor(ctx, uris)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("hydrating %d posts: %w", len(uris), err)
	}

	return st, nil
}

func observe(stage string, start time.Time) {
	hydrationDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
