package hydrator

import (
	"github.com/bluesky-social/feedview/util"
	"github.com/bluesky-social/feedview/views"
)

// ComposePostView merges hydrated state into the view of uri. A post missing
// from st, or whose author is, renders as NotFoundPost; a post whose author
// has a block in either direction with the viewer renders as BlockedPost.
func ComposePostView(uri string, st *State) *views.PostResult {
	pi := st.Posts[uri]
	if pi == nil {
		placeholdersRendered.WithLabelValues("not_found").Inc()
		return views.NewNotFound(uri)
	}

	author := st.Actors[pi.Author]
	if author == nil {
		placeholdersRendered.WithLabelValues("not_found").Inc()
		return views.NewNotFound(uri)
	}

	if author.HasBlock() {
		placeholdersRendered.WithLabelValues("blocked").Inc()
		return views.NewBlocked(uri, &views.BlockedAuthor{Did: author.Did, Viewer: author.Viewer})
	}

	pv := &views.PostView{
		Uri:         pi.Uri,
		Cid:         pi.Cid,
		Author:      author,
		Record:      postRecord(pi),
		Embed:       st.Embeds[uri],
		ReplyCount:  &pi.ReplyCount,
		RepostCount: &pi.RepostCount,
		LikeCount:   &pi.LikeCount,
		IndexedAt:   indexedAt(pi),
		Labels:      postLabels(pi, st.Labels[uri]),
	}
	if st.Requester != "" {
		pv.Viewer = &views.PostViewerState{
			Like:   pi.ViewerLike,
			Repost: pi.ViewerRepost,
		}
	}

	return &views.PostResult{PostView: pv}
}

func postRecord(pi *PostInfo) *views.PostRecord {
	rec := &views.PostRecord{
		LexiconTypeID: views.TypePostRecord,
		Text:          pi.Text,
		CreatedAt:     pi.CreatedAt,
		Langs:         pi.Langs,
	}
	if pi.ReplyParent != "" {
		root := pi.ReplyRoot
		if root == "" {
			root = pi.ReplyParent
		}
		rec.Reply = &views.ReplyRef{
			Root:   &views.StrongRef{Uri: root},
			Parent: &views.StrongRef{Uri: pi.ReplyParent},
		}
	}
	return rec
}

// postLabels appends the record's self labels to its moderation labels.
func postLabels(pi *PostInfo, moderation []*views.Label) []*views.Label {
	out := make([]*views.Label, 0, len(moderation)+len(pi.SelfLabels))
	out = append(out, moderation...)
	for _, val := range pi.SelfLabels {
		out = append(out, &views.Label{
			Src: pi.Author,
			Uri: pi.Uri,
			Cid: pi.Cid,
			Val: val,
			Cts: pi.CreatedAt,
		})
	}
	return out
}

func indexedAt(pi *PostInfo) string {
	if pi.IndexedAt.IsZero() {
		return pi.SortAt
	}
	return util.SortAt(pi.IndexedAt)
}
