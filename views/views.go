// Package views holds the response shapes produced by the read path. Union
// types carry one pointer per variant and stamp the variant's $type when
// marshalled.
package views

import (
	"encoding/json"
	"fmt"
)

const (
	TypePostView       = "app.bsky.feed.defs#postView"
	TypeNotFoundPost   = "app.bsky.feed.defs#notFoundPost"
	TypeBlockedPost    = "app.bsky.feed.defs#blockedPost"
	TypeThreadViewPost = "app.bsky.feed.defs#threadViewPost"
	TypeReasonRepost   = "app.bsky.feed.defs#reasonRepost"
	TypePostRecord     = "app.bsky.feed.post"
)

type Label struct {
	Src string `json:"src"`
	Uri string `json:"uri"`
	Cid string `json:"cid,omitempty"`
	Val string `json:"val"`
	Cts string `json:"cts"`
}

type ActorViewerState struct {
	Muted      bool   `json:"muted"`
	Blocking   string `json:"blocking,omitempty"`
	BlockedBy  bool   `json:"blockedBy"`
	Following  string `json:"following,omitempty"`
	FollowedBy string `json:"followedBy,omitempty"`
}

type ActorView struct {
	Did         string            `json:"did"`
	Handle      string            `json:"handle"`
	DisplayName *string           `json:"displayName,omitempty"`
	Avatar      *string           `json:"avatar,omitempty"`
	Viewer      *ActorViewerState `json:"viewer,omitempty"`
	Labels      []*Label          `json:"labels"`
}

// HasBlock reports whether the viewer state carries a block in either
// direction.
func (a *ActorView) HasBlock() bool {
	return a.Viewer != nil && (a.Viewer.Blocking != "" || a.Viewer.BlockedBy)
}

type StrongRef struct {
	Uri string `json:"uri"`
	Cid string `json:"cid,omitempty"`
}

type ReplyRef struct {
	Root   *StrongRef `json:"root"`
	Parent *StrongRef `json:"parent"`
}

type PostRecord struct {
	LexiconTypeID string    `json:"$type"`
	Text          string    `json:"text"`
	CreatedAt     string    `json:"createdAt"`
	Reply         *ReplyRef `json:"reply,omitempty"`
	Langs         []string  `json:"langs,omitempty"`
}

type PostViewerState struct {
	Like   string `json:"like,omitempty"`
	Repost string `json:"repost,omitempty"`
}

type PostView struct {
	LexiconTypeID string           `json:"$type,omitempty"`
	Uri           string           `json:"uri"`
	Cid           string           `json:"cid"`
	Author        *ActorView       `json:"author"`
	Record        *PostRecord      `json:"record"`
	Embed         *Embed           `json:"embed,omitempty"`
	ReplyCount    *int64           `json:"replyCount,omitempty"`
	RepostCount   *int64           `json:"repostCount,omitempty"`
	LikeCount     *int64           `json:"likeCount,omitempty"`
	IndexedAt     string           `json:"indexedAt"`
	Viewer        *PostViewerState `json:"viewer,omitempty"`
	Labels        []*Label         `json:"labels"`
}

// MarshalJSON stamps $type wherever the view appears, including bare feed
// items.
func (t *PostView) MarshalJSON() ([]byte, error) {
	t.LexiconTypeID = TypePostView
	type postView PostView
	return json.Marshal((*postView)(t))
}

type NotFoundPost struct {
	LexiconTypeID string `json:"$type,omitempty"`
	Uri           string `json:"uri"`
	NotFound      bool   `json:"notFound"`
}

type BlockedAuthor struct {
	Did    string            `json:"did"`
	Viewer *ActorViewerState `json:"viewer,omitempty"`
}

type BlockedPost struct {
	LexiconTypeID string         `json:"$type,omitempty"`
	Uri           string         `json:"uri"`
	Blocked       bool           `json:"blocked"`
	Author        *BlockedAuthor `json:"author"`
}

// PostResult is a post as seen by one viewer: the full view or one of the
// placeholders.
type PostResult struct {
	PostView     *PostView
	NotFoundPost *NotFoundPost
	BlockedPost  *BlockedPost
}

func NewNotFound(uri string) *PostResult {
	return &PostResult{NotFoundPost: &NotFoundPost{Uri: uri, NotFound: true}}
}

func NewBlocked(uri string, author *BlockedAuthor) *PostResult {
	return &PostResult{BlockedPost: &BlockedPost{Uri: uri, Blocked: true, Author: author}}
}

func (t *PostResult) IsNotFound() bool {
	return t == nil || (t.PostView == nil && t.BlockedPost == nil)
}

func (t *PostResult) IsBlocked() bool {
	return t != nil && t.BlockedPost != nil
}

func (t *PostResult) Uri() string {
	switch {
	case t == nil:
		return ""
	case t.PostView != nil:
		return t.PostView.Uri
	case t.BlockedPost != nil:
		return t.BlockedPost.Uri
	case t.NotFoundPost != nil:
		return t.NotFoundPost.Uri
	}
	return ""
}

func (t *PostResult) MarshalJSON() ([]byte, error) {
	if t.PostView != nil {
		return json.Marshal(t.PostView)
	}
	if t.NotFoundPost != nil {
		t.NotFoundPost.LexiconTypeID = TypeNotFoundPost
		return json.Marshal(t.NotFoundPost)
	}
	if t.BlockedPost != nil {
		t.BlockedPost.LexiconTypeID = TypeBlockedPost
		return json.Marshal(t.BlockedPost)
	}
	return nil, fmt.Errorf("cannot marshal empty enum")
}

type ReasonRepost struct {
	LexiconTypeID string     `json:"$type"`
	By            *ActorView `json:"by"`
	IndexedAt     string     `json:"indexedAt"`
}

type ReplyContext struct {
	Root   *PostResult `json:"root"`
	Parent *PostResult `json:"parent"`
}

type FeedViewPost struct {
	Post   *PostView     `json:"post"`
	Reply  *ReplyContext `json:"reply,omitempty"`
	Reason *ReasonRepost `json:"reason,omitempty"`
}
