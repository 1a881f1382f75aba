package models

import (
	"time"

	"gorm.io/gorm"
)

// FeedPost is an indexed app.bsky.feed.post record. Counts are maintained by
// the write path; this module only reads them.
type FeedPost struct {
	ID          uint   `gorm:"primarykey"`
	Uri         string `gorm:"uniqueIndex"`
	Cid         string
	Author      string `gorm:"index:idx_feedpost_author_sort"`
	Rkey        string
	Text        string
	ReplyParent string `gorm:"index"`
	ReplyRoot   string `gorm:"index"`
	// SelfLabels are label values declared on the record itself.
	SelfLabels  []string `gorm:"serializer:json"`
	Langs       []string `gorm:"serializer:json"`
	LikeCount   int64
	RepostCount int64
	ReplyCount  int64
	CreatedAt   string
	IndexedAt   time.Time
	SortAt      string `gorm:"index:idx_feedpost_author_sort"`
	Deleted     bool
}

// FeedItem is one row of the denormalized feed table: either a post
// (originator == author) or a repost of a post (originator == reposter).
type FeedItem struct {
	ID          uint   `gorm:"primarykey"`
	Uri         string `gorm:"uniqueIndex"`
	Cid         string `gorm:"index"`
	Type        string
	PostUri     string `gorm:"index"`
	PostAuthor  string `gorm:"index"`
	Originator  string `gorm:"index:idx_feeditem_originator_sort"`
	ReplyParent string
	ReplyRoot   string
	SortAt      string `gorm:"index:idx_feeditem_originator_sort"`
}

const (
	FeedItemTypePost   = "post"
	FeedItemTypeRepost = "repost"
)

// Record collections referenced by the read path.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionLike   = "app.bsky.feed.like"
	CollectionFollow = "app.bsky.graph.follow"
	CollectionBlock  = "app.bsky.graph.block"
)

type RepostRecord struct {
	ID        uint   `gorm:"primarykey"`
	Uri       string `gorm:"uniqueIndex"`
	Cid       string
	Author    string `gorm:"index:idx_repost_author_subject"`
	Subject   string `gorm:"index:idx_repost_author_subject"`
	CreatedAt string
	IndexedAt time.Time
}

type LikeRecord struct {
	ID        uint   `gorm:"primarykey"`
	Uri       string `gorm:"uniqueIndex"`
	Cid       string
	Author    string `gorm:"index:idx_like_author_subject"`
	Subject   string `gorm:"index:idx_like_author_subject"`
	CreatedAt string
	IndexedAt time.Time
}

type ActorInfo struct {
	gorm.Model
	Did         string `gorm:"uniqueIndex"`
	Handle      string
	DisplayName string
	AvatarCid   string
	TakenDown   bool
}

type FollowRecord struct {
	ID        uint   `gorm:"primarykey"`
	Uri       string `gorm:"uniqueIndex"`
	Follower  string `gorm:"index:idx_follow_pair"`
	Target    string `gorm:"index:idx_follow_pair;index"`
	CreatedAt string
}

// BlockRecord says Author blocks Subject.
type BlockRecord struct {
	ID        uint   `gorm:"primarykey"`
	Uri       string `gorm:"uniqueIndex"`
	Author    string `gorm:"index:idx_block_pair"`
	Subject   string `gorm:"index:idx_block_pair;index"`
	CreatedAt string
}

// MuteRecord says Muter mutes Subject. Mutes are private, so there is no
// record URI.
type MuteRecord struct {
	ID      uint   `gorm:"primarykey"`
	Muter   string `gorm:"index:idx_mute_pair"`
	Subject string `gorm:"index:idx_mute_pair"`
}

// Label is a moderation label applied to an account (Uri is a DID) or a
// record (Uri is an AT-URI).
type Label struct {
	ID  uint   `gorm:"primarykey"`
	Src string `gorm:"index"`
	Uri string `gorm:"index:idx_label_uri_val"`
	Cid string
	Val string `gorm:"index:idx_label_uri_val"`
	Neg bool
	Cts string
}

type PostEmbedImage struct {
	ID       uint   `gorm:"primarykey"`
	PostUri  string `gorm:"index"`
	Position int
	ImageCid string
	Alt      string
}

type PostEmbedExternal struct {
	ID          uint   `gorm:"primarykey"`
	PostUri     string `gorm:"uniqueIndex"`
	Uri         string
	Title       string
	Description string
	ThumbCid    string
}

type PostEmbedRecord struct {
	ID       uint   `gorm:"primarykey"`
	PostUri  string `gorm:"uniqueIndex"`
	EmbedUri string `gorm:"index"`
	EmbedCid string
}

// PostHierarchy is the reply closure table: one row per (post, ancestor)
// pair, Depth 1 being the direct parent.
type PostHierarchy struct {
	ID       uint   `gorm:"primarykey"`
	Uri      string `gorm:"index:idx_hierarchy_uri_depth"`
	Ancestor string `gorm:"index:idx_hierarchy_ancestor_depth"`
	Depth    int    `gorm:"index:idx_hierarchy_uri_depth;index:idx_hierarchy_ancestor_depth"`
}

// All lists every table the read path consults, for Migrate.
func All() []any {
	return []any{
		&FeedPost{},
		&FeedItem{},
		&RepostRecord{},
		&LikeRecord{},
		&ActorInfo{},
		&FollowRecord{},
		&BlockRecord{},
		&MuteRecord{},
		&Label{},
		&PostEmbedImage{},
		&PostEmbedExternal{},
		&PostEmbedRecord{},
		&PostHierarchy{},
		&ModerationAction{},
	}
}
