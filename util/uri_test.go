package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAtUri(t *testing.T) {
	assert := assert.New(t)

	pu, err := ParseAtUri("at://did:plc:abc123/app.bsky.feed.post/3kabc")
	assert.NoError(err)
	assert.Equal("did:plc:abc123", pu.Did)
	assert.Equal("app.bsky.feed.post", pu.Collection)
	assert.Equal("3kabc", pu.Rkey)
	assert.Equal("at://did:plc:abc123/app.bsky.feed.post/3kabc", RecordUri(pu.Did, pu.Collection, pu.Rkey))

	bad := []string{
		"",
		"did:plc:abc123/app.bsky.feed.post/3kabc",
		"at://did:plc:abc123",
		"at://did:plc:abc123/app.bsky.feed.post",
		"at://alice.test/app.bsky.feed.post/3kabc",
		"at://did:plc:abc123//3kabc",
	}
	for _, b := range bad {
		_, err := ParseAtUri(b)
		assert.Error(err, b)
		assert.Equal("", DidFromUri(b))
	}
}
