// Package keyset implements opaque keyset (cursor) pagination over an ordered
// (primary, secondary) pair.
//
// Every paginated query in the read path describes its ordering with a
// [Codec]: which columns it sorts on, in which direction, how the primary
// column compares, and a single extractor that reads the pair off a result
// row. The codec then owns the wire format of the cursor and the "after
// cursor" SQL predicate, so concrete paginations never re-implement either.
package keyset

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/bluesky-social/feedview/util"

	sq "github.com/Masterminds/squirrel"
)

// ErrMalformedCursor is returned (wrapped) for any client cursor that does not
// decode to a valid key for the codec it was handed to.
var ErrMalformedCursor = errors.New("malformed cursor")

type Direction int

const (
	Descending Direction = iota
	Ascending
)

func (d Direction) sql() string {
	if d == Ascending {
		return "ASC"
	}
	return "DESC"
}

// ValueKind says how the primary value compares, both in SQL and in memory.
// Values always travel as strings; non-text kinds are parsed and re-validated
// on decode.
type ValueKind int

const (
	Text ValueKind = iota
	Integer
	Float
	// Timestamp primaries are stored sort keys, carried verbatim. They must
	// parse as a timestamp and compare lexically, as the text column does.
	Timestamp
)

// Key is a decoded cursor position.
type Key struct {
	Primary   string
	Secondary string
}

const separator = "::"

// Codec is the strategy object for one concrete ordering.
type Codec[R any] struct {
	// Extract reads the ordering pair off a row. Required.
	Extract func(R) Key

	PrimaryColumn   string
	SecondaryColumn string
	Kind            ValueKind
	Direction       Direction
}

// Pack encodes the position just after row.
func (c *Codec[R]) Pack(row R) string {
	k := c.Extract(row)
	return url.QueryEscape(k.Primary) + separator + url.QueryEscape(k.Secondary)
}

// PackPage returns the cursor for the page after rows, or "" if rows is empty.
func (c *Codec[R]) PackPage(rows []R) string {
	if len(rows) == 0 {
		return ""
	}
	return c.Pack(rows[len(rows)-1])
}

// Unpack decodes a client supplied cursor. An empty cursor means "from the
// start" and yields a nil key.
func (c *Codec[R]) Unpack(cursor string) (*Key, error) {
	if cursor == "" {
		return nil, nil
	}

	parts := strings.Split(cursor, separator)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected 2 parts, got %d", ErrMalformedCursor, len(parts))
	}

	primary, err := url.QueryUnescape(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: primary: %s", ErrMalformedCursor, err)
	}
	secondary, err := url.QueryUnescape(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: secondary: %s", ErrMalformedCursor, err)
	}
	if primary == "" || secondary == "" {
		return nil, fmt.Errorf("%w: empty component", ErrMalformedCursor)
	}

	if _, err := c.Kind.sqlValue(primary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedCursor, err)
	}

	return &Key{Primary: primary, Secondary: secondary}, nil
}

// Predicate returns the "strictly after k" condition:
//
//	(primary REL k.primary) OR (primary = k.primary AND secondary REL k.secondary)
//
// with REL being < for descending and > for ascending codecs. A nil key
// yields a nil predicate.
func (c *Codec[R]) Predicate(k *Key) (sq.Sqlizer, error) {
	if k == nil {
		return nil, nil
	}

	pv, err := c.Kind.sqlValue(k.Primary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedCursor, err)
	}

	var primaryRel, secondaryRel sq.Sqlizer
	if c.Direction == Ascending {
		primaryRel = sq.Gt{c.PrimaryColumn: pv}
		secondaryRel = sq.Gt{c.SecondaryColumn: k.Secondary}
	} else {
		primaryRel = sq.Lt{c.PrimaryColumn: pv}
		secondaryRel = sq.Lt{c.SecondaryColumn: k.Secondary}
	}

	return sq.Or{
		primaryRel,
		sq.And{sq.Eq{c.PrimaryColumn: pv}, secondaryRel},
	}, nil
}

// Apply decodes cursor and adds the predicate, the ORDER BY and the LIMIT to
// sb. Callers add their own filters (visibility, labels) before calling Apply.
func (c *Codec[R]) Apply(sb sq.SelectBuilder, cursor string, limit int) (sq.SelectBuilder, error) {
	k, err := c.Unpack(cursor)
	if err != nil {
		return sb, err
	}
	return c.ApplyKey(sb, k, limit)
}

// ApplyKey is Apply for an already decoded key.
func (c *Codec[R]) ApplyKey(sb sq.SelectBuilder, k *Key, limit int) (sq.SelectBuilder, error) {
	if k != nil {
		pred, err := c.Predicate(k)
		if err != nil {
			return sb, err
		}
		sb = sb.Where(pred)
	}

	dir := c.Direction.sql()
	sb = sb.OrderBy(c.PrimaryColumn+" "+dir, c.SecondaryColumn+" "+dir)
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	return sb, nil
}

// Before reports whether a sorts strictly before b in the codec's order. It
// agrees with the SQL ordering produced by Apply, comparing secondaries
// byte-wise.
func (c *Codec[R]) Before(a, b R) bool {
	return c.compare(c.Extract(a), c.Extract(b)) < 0
}

func (c *Codec[R]) compare(a, b Key) int {
	cmp := c.Kind.compare(a.Primary, b.Primary)
	if cmp == 0 {
		cmp = strings.Compare(a.Secondary, b.Secondary)
	}
	if c.Direction == Descending {
		return -cmp
	}
	return cmp
}

// Page is one page of rows plus the cursor for the next one.
type Page[R any] struct {
	Rows   []R
	Cursor string
}

// Paginate trims rows to limit and derives the next cursor from the last row
// kept.
func Paginate[R any](c *Codec[R], rows []R, limit int) Page[R] {
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return Page[R]{
		Rows:   rows,
		Cursor: c.PackPage(rows),
	}
}

func (k ValueKind) sqlValue(primary string) (any, error) {
	switch k {
	case Text:
		return primary, nil
	case Integer:
		v, err := strconv.ParseInt(primary, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("primary %q is not an integer", primary)
		}
		return v, nil
	case Float:
		v, err := strconv.ParseFloat(primary, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("primary %q is not a finite number", primary)
		}
		return v, nil
	case Timestamp:
		if _, err := util.ParseTimestamp(primary); err != nil {
			return nil, fmt.Errorf("primary %q is not a timestamp", primary)
		}
		return primary, nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", k)
	}
}

func (k ValueKind) compare(a, b string) int {
	switch k {
	case Integer:
		av, aerr := strconv.ParseInt(a, 10, 64)
		bv, berr := strconv.ParseInt(b, 10, 64)
		if aerr == nil && berr == nil {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case Float:
		av, aerr := strconv.ParseFloat(a, 64)
		bv, berr := strconv.ParseFloat(b, 64)
		if aerr == nil && berr == nil {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a, b)
}
