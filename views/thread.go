package views

import (
	"encoding/json"
	"fmt"
)

// ThreadNode is one post of a thread with its parent chain and replies.
// Placeholder nodes (not found, blocked) never carry a parent or replies,
// and nodes on the parent chain carry no replies.
type ThreadNode struct {
	Post    *PostResult
	Parent  *ThreadNode
	Replies []*ThreadNode
}

type threadViewPost struct {
	LexiconTypeID string         `json:"$type"`
	Post          *PostView      `json:"post"`
	Parent        *ThreadNode    `json:"parent,omitempty"`
	Replies       *[]*ThreadNode `json:"replies,omitempty"`
}

func (t *ThreadNode) MarshalJSON() ([]byte, error) {
	if t.Post == nil {
		return nil, fmt.Errorf("cannot marshal empty thread node")
	}
	if t.Post.PostView == nil {
		return json.Marshal(t.Post)
	}

	tvp := &threadViewPost{
		LexiconTypeID: TypeThreadViewPost,
		Post:          t.Post.PostView,
		Parent:        t.Parent,
	}
	// parents carry no replies; an empty, non-nil list is still rendered
	if t.Replies != nil {
		tvp.Replies = &t.Replies
	}
	return json.Marshal(tvp)
}
