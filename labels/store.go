// Package labels reads moderation labels for accounts and records, and builds
// the deny-list predicate used by label-filtered feeds.
package labels

import (
	"context"
	"fmt"

	"github.com/bluesky-social/feedview/models"
	"github.com/bluesky-social/feedview/util/sqlutil"
	"github.com/bluesky-social/feedview/views"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("labels")

// Store returns the labels currently applied to each subject (a DID or a
// record URI). Subjects without labels are absent from the result.
type Store interface {
	LabelsFor(ctx context.Context, subjects []string) (map[string][]*views.Label, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

type labelKey struct {
	src string
	uri string
	val string
}

func (s *GormStore) LabelsFor(ctx context.Context, subjects []string) (map[string][]*views.Label, error) {
	ctx, span := tracer.Start(ctx, "LabelsFor")
	defer span.End()
	span.SetAttributes(attribute.Int("subjects", len(subjects)))

	out := make(map[string][]*views.Label)
	if len(subjects) == 0 {
		return out, nil
	}
	labelLookups.Inc()

	var rows []models.Label
	if err := s.db.WithContext(ctx).
		Where("uri IN ?", subjects).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}

	// a negation cancels every earlier label with the same source and value
	active := make(map[labelKey]*views.Label)
	var order []labelKey
	for _, r := range rows {
		k := labelKey{src: r.Src, uri: r.Uri, val: r.Val}
		if r.Neg {
			delete(active, k)
			continue
		}
		if _, ok := active[k]; !ok {
			order = append(order, k)
		}
		active[k] = &views.Label{
			Src: r.Src,
			Uri: r.Uri,
			Cid: r.Cid,
			Val: r.Val,
			Cts: r.Cts,
		}
	}

	for _, k := range order {
		l, ok := active[k]
		if !ok {
			continue
		}
		// re-applied after a negation: only emit once
		delete(active, k)
		out[k.uri] = append(out[k.uri], l)
		labelsReturned.WithLabelValues(k.src).Inc()
	}

	return out, nil
}

// DenyList excludes rows whose subject columns carry any of vals. A label
// stops counting once a later negation with the same source and value exists.
// It returns nil when vals is empty.
func DenyList(vals []string, cols ...string) sq.Sqlizer {
	if len(vals) == 0 || len(cols) == 0 {
		return nil
	}

	var subjects sq.Or
	for _, col := range cols {
		subjects = append(subjects, sq.Expr("l.uri = "+col))
	}

	negated := sq.Select("1").From("labels n").
		Where("n.uri = l.uri AND n.src = l.src AND n.val = l.val").
		Where(sq.Eq{"n.neg": true}).
		Where("n.id > l.id")

	return sqlutil.NotExists(sq.Select("1").From("labels l").
		Where(subjects).
		Where(sq.Eq{"l.val": vals, "l.neg": false}).
		Where(sqlutil.NotExists(negated)))
}
