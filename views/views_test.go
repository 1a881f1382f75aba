package views

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeType(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var out struct {
		Type string `json:"$type"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.Type
}

func TestPostViewType(t *testing.T) {
	assert := assert.New(t)

	pv := func(uri string) *PostView {
		return &PostView{Uri: uri, Author: &ActorView{Did: "did:plc:alice"}, Record: &PostRecord{}}
	}

	fvp := &FeedViewPost{
		Post: pv("at://did:plc:alice/app.bsky.feed.post/1"),
		Reply: &ReplyContext{
			Root:   NewNotFound("at://did:plc:bob/app.bsky.feed.post/0"),
			Parent: &PostResult{PostView: pv("at://did:plc:alice/app.bsky.feed.post/0")},
		},
	}

	out, err := json.Marshal(fvp)
	require.NoError(t, err)

	var decoded struct {
		Post  json.RawMessage `json:"post"`
		Reply struct {
			Root   json.RawMessage `json:"root"`
			Parent json.RawMessage `json:"parent"`
		} `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))

	// a bare feed item post is stamped like one inside a union
	assert.Equal(TypePostView, decodeType(t, decoded.Post))
	assert.Equal(TypePostView, decodeType(t, decoded.Reply.Parent))
	assert.Equal(TypeNotFoundPost, decodeType(t, decoded.Reply.Root))

	node := &ThreadNode{Post: &PostResult{PostView: pv("at://did:plc:alice/app.bsky.feed.post/2")}, Replies: []*ThreadNode{}}
	out, err = json.Marshal(node)
	require.NoError(t, err)

	var tn struct {
		Type string          `json:"$type"`
		Post json.RawMessage `json:"post"`
	}
	require.NoError(t, json.Unmarshal(out, &tn))
	assert.Equal(TypeThreadViewPost, tn.Type)
	assert.Equal(TypePostView, decodeType(t, tn.Post))
}
