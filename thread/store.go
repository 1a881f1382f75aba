package thread

import (
	"context"
	"fmt"

	"github.com/bluesky-social/feedview/models"

	"gorm.io/gorm"
)

// Store reads the reply hierarchy.
type Store interface {
	// Ancestors returns up to height ancestors of uri, nearest first.
	Ancestors(ctx context.Context, uri string, height int) ([]string, error)
	// Descendants returns the replies of uri down to depth levels.
	Descendants(ctx context.Context, uri string, depth int) ([]string, error)
}

// GormStore reads the post_hierarchies closure table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) Ancestors(ctx context.Context, uri string, height int) ([]string, error) {
	var out []string
	if height <= 0 {
		return out, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.PostHierarchy{}).
		Where("uri = ? AND depth <= ?", uri, height).
		Order("depth ASC").
		Pluck("ancestor", &out).Error; err != nil {
		return nil, fmt.Errorf("loading ancestors: %w", err)
	}
	return out, nil
}

func (s *GormStore) Descendants(ctx context.Context, uri string, depth int) ([]string, error) {
	var out []string
	if depth <= 0 {
		return out, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.PostHierarchy{}).
		Where("ancestor = ? AND depth <= ?", uri, depth).
		Order("depth ASC").Order("uri ASC").
		Pluck("uri", &out).Error; err != nil {
		return nil, fmt.Errorf("loading descendants: %w", err)
	}
	return out, nil
}
