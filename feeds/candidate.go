// Package feeds holds the candidate query strategies behind every feed: each
// one returns minimal, pre-sorted, visibility-filtered feed item references
// plus the cursor for the next page.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bluesky-social/feedview/keyset"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("feeds")

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidFilter        = errors.New("invalid author feed filter")
)

// Candidate is a feed item reference before hydration.
type Candidate struct {
	Kind        string  `gorm:"column:kind"`
	ItemURI     string  `gorm:"column:item_uri"`
	ItemCID     string  `gorm:"column:item_cid"`
	PostURI     string  `gorm:"column:post_uri"`
	PostAuthor  string  `gorm:"column:post_author"`
	Originator  string  `gorm:"column:originator"`
	ReplyParent string  `gorm:"column:reply_parent"`
	ReplyRoot   string  `gorm:"column:reply_root"`
	SortAt      string  `gorm:"column:sort_at"`
	Score       int64   `gorm:"column:score"`
	Distance    float64 `gorm:"column:distance"`
}

type Page struct {
	Rows   []Candidate
	Cursor string
}

// Strategy produces one page of candidates for requester. An empty requester
// is an anonymous viewer.
type Strategy interface {
	Candidates(ctx context.Context, requester, cursor string, limit int) (*Page, error)
}

// SortAtCodec orders feed items newest first, ties broken by item URI. The
// stored sort key travels in the cursor as is, whatever width it was
// written in.
func SortAtCodec(sortCol, uriCol string) *keyset.Codec[Candidate] {
	return &keyset.Codec[Candidate]{
		Extract: func(c Candidate) keyset.Key {
			return keyset.Key{Primary: c.SortAt, Secondary: c.ItemURI}
		},
		PrimaryColumn:   sortCol,
		SecondaryColumn: uriCol,
		Kind:            keyset.Timestamp,
		Direction:       keyset.Descending,
	}
}

// ScoreCodec orders by an integer engagement score, highest first, ties
// broken by CID. scoreExpr must be usable in both WHERE and ORDER BY.
func ScoreCodec(scoreExpr, cidCol string) *keyset.Codec[Candidate] {
	return &keyset.Codec[Candidate]{
		Extract: func(c Candidate) keyset.Key {
			return keyset.Key{Primary: strconv.FormatInt(c.Score, 10), Secondary: c.ItemCID}
		},
		PrimaryColumn:   scoreExpr,
		SecondaryColumn: cidCol,
		Kind:            keyset.Integer,
		Direction:       keyset.Descending,
	}
}

// DistanceCodec orders by similarity distance, closest first, ties broken by
// the author DID.
func DistanceCodec(distanceCol, didCol string) *keyset.Codec[Candidate] {
	return &keyset.Codec[Candidate]{
		Extract: func(c Candidate) keyset.Key {
			return keyset.Key{Primary: strconv.FormatFloat(c.Distance, 'g', -1, 64), Secondary: c.PostAuthor}
		},
		PrimaryColumn:   distanceCol,
		SecondaryColumn: didCol,
		Kind:            keyset.Float,
		Direction:       keyset.Ascending,
	}
}

// itemColumns selects a Candidate off feed_items aliased as fi.
var itemColumns = []string{
	"fi.type AS kind",
	"fi.uri AS item_uri",
	"fi.cid AS item_cid",
	"fi.post_uri AS post_uri",
	"fi.post_author AS post_author",
	"fi.originator AS originator",
	"fi.reply_parent AS reply_parent",
	"fi.reply_root AS reply_root",
	"fi.sort_at AS sort_at",
}

func selectItems(extra ...string) sq.SelectBuilder {
	return sq.Select(append(append([]string{}, itemColumns...), extra...)...).From("feed_items fi")
}

func fetch(ctx context.Context, db *gorm.DB, algo string, sb sq.SelectBuilder) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "fetchCandidates")
	defer span.End()
	span.SetAttributes(attribute.String("algo", algo))

	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", algo, err)
	}

	start := time.Now()
	var rows []Candidate
	if err := db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying %s candidates: %w", algo, err)
	}
	queryDuration.WithLabelValues(algo).Observe(time.Since(start).Seconds())
	candidatesReturned.WithLabelValues(algo).Add(float64(len(rows)))

	return rows, nil
}

// paged runs sb after applying the codec and paginates the result.
func paged(ctx context.Context, db *gorm.DB, algo string, codec *keyset.Codec[Candidate], sb sq.SelectBuilder, cursor string, limit int) (*Page, error) {
	sb, err := codec.Apply(sb, cursor, limit)
	if err != nil {
		return nil, err
	}

	rows, err := fetch(ctx, db, algo, sb)
	if err != nil {
		return nil, err
	}

	p := keyset.Paginate(codec, rows, limit)
	return &Page{Rows: p.Rows, Cursor: p.Cursor}, nil
}

// emptyPage is the page for viewers a strategy has nothing for. The cursor is
// still validated.
func emptyPage(codec *keyset.Codec[Candidate], cursor string) (*Page, error) {
	if _, err := codec.Unpack(cursor); err != nil {
		return nil, err
	}
	return &Page{}, nil
}
