package views

import (
	"encoding/json"
	"fmt"
)

const (
	TypeEmbedImages          = "app.bsky.embed.images#view"
	TypeEmbedExternal        = "app.bsky.embed.external#view"
	TypeEmbedRecord          = "app.bsky.embed.record#view"
	TypeEmbedRecordWithMedia = "app.bsky.embed.recordWithMedia#view"
	TypeViewRecord           = "app.bsky.embed.record#viewRecord"
	TypeViewNotFound         = "app.bsky.embed.record#viewNotFound"
	TypeViewBlocked          = "app.bsky.embed.record#viewBlocked"
)

type Embed struct {
	EmbedImages          *EmbedImages
	EmbedExternal        *EmbedExternal
	EmbedRecord          *EmbedRecord
	EmbedRecordWithMedia *EmbedRecordWithMedia
}

func (t *Embed) MarshalJSON() ([]byte, error) {
	if t.EmbedImages != nil {
		t.EmbedImages.LexiconTypeID = TypeEmbedImages
		return json.Marshal(t.EmbedImages)
	}
	if t.EmbedExternal != nil {
		t.EmbedExternal.LexiconTypeID = TypeEmbedExternal
		return json.Marshal(t.EmbedExternal)
	}
	if t.EmbedRecord != nil {
		t.EmbedRecord.LexiconTypeID = TypeEmbedRecord
		return json.Marshal(t.EmbedRecord)
	}
	if t.EmbedRecordWithMedia != nil {
		t.EmbedRecordWithMedia.LexiconTypeID = TypeEmbedRecordWithMedia
		return json.Marshal(t.EmbedRecordWithMedia)
	}
	return nil, fmt.Errorf("cannot marshal empty enum")
}

type ImageView struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

type EmbedImages struct {
	LexiconTypeID string       `json:"$type,omitempty"`
	Images        []*ImageView `json:"images"`
}

type ExternalView struct {
	Uri         string  `json:"uri"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Thumb       *string `json:"thumb,omitempty"`
}

type EmbedExternal struct {
	LexiconTypeID string        `json:"$type,omitempty"`
	External      *ExternalView `json:"external"`
}

type EmbedRecord struct {
	LexiconTypeID string           `json:"$type,omitempty"`
	Record        *EmbedRecordView `json:"record"`
}

// EmbedRecordWithMedia pairs a quoted record with an images or external
// embed in Media.
type EmbedRecordWithMedia struct {
	LexiconTypeID string       `json:"$type,omitempty"`
	Record        *EmbedRecord `json:"record"`
	Media         *Embed       `json:"media"`
}

type EmbedRecordView struct {
	ViewRecord   *ViewRecord
	ViewNotFound *ViewNotFound
	ViewBlocked  *ViewBlocked
}

func (t *EmbedRecordView) MarshalJSON() ([]byte, error) {
	if t.ViewRecord != nil {
		t.ViewRecord.LexiconTypeID = TypeViewRecord
		return json.Marshal(t.ViewRecord)
	}
	if t.ViewNotFound != nil {
		t.ViewNotFound.LexiconTypeID = TypeViewNotFound
		return json.Marshal(t.ViewNotFound)
	}
	if t.ViewBlocked != nil {
		t.ViewBlocked.LexiconTypeID = TypeViewBlocked
		return json.Marshal(t.ViewBlocked)
	}
	return nil, fmt.Errorf("cannot marshal empty enum")
}

// ViewRecord is a quoted post. Embeds is only populated one level down;
// deeper quotes are rendered without their own embeds.
type ViewRecord struct {
	LexiconTypeID string      `json:"$type,omitempty"`
	Uri           string      `json:"uri"`
	Cid           string      `json:"cid"`
	Author        *ActorView  `json:"author"`
	Value         *PostRecord `json:"value"`
	Labels        []*Label    `json:"labels"`
	ReplyCount    *int64      `json:"replyCount,omitempty"`
	RepostCount   *int64      `json:"repostCount,omitempty"`
	LikeCount     *int64      `json:"likeCount,omitempty"`
	Embeds        []*Embed    `json:"embeds,omitempty"`
	IndexedAt     string      `json:"indexedAt"`
}

type ViewNotFound struct {
	LexiconTypeID string `json:"$type,omitempty"`
	Uri           string `json:"uri"`
	NotFound      bool   `json:"notFound"`
}

type ViewBlocked struct {
	LexiconTypeID string         `json:"$type,omitempty"`
	Uri           string         `json:"uri"`
	Blocked       bool           `json:"blocked"`
	Author        *BlockedAuthor `json:"author"`
}
