package social

import (
	"context"
	"fmt"

	"github.com/bluesky-social/feedview/models"

	"gorm.io/gorm"
)

// GormDirectory reads relationship facts from the index database.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

var _ Directory = (*GormDirectory)(nil)

func (d *GormDirectory) BlockedPairs(ctx context.Context, dids []string) (PairSet, error) {
	out := PairSet{}
	if len(dids) < 2 {
		return out, nil
	}

	var blocks []models.BlockRecord
	if err := d.db.WithContext(ctx).
		Select("uri", "author", "subject").
		Where("author IN ? AND subject IN ?", dids, dids).
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("loading blocks: %w", err)
	}

	for _, b := range blocks {
		out.Add(b.Author, b.Subject, b.Uri)
	}
	return out, nil
}

func (d *GormDirectory) MutedBy(ctx context.Context, requester string, dids []string) (DIDSet, error) {
	out := DIDSet{}
	if requester == "" || len(dids) == 0 {
		return out, nil
	}

	var subjects []string
	if err := d.db.WithContext(ctx).Model(&models.MuteRecord{}).
		Where("muter = ? AND subject IN ?", requester, dids).
		Pluck("subject", &subjects).Error; err != nil {
		return nil, fmt.Errorf("loading mutes: %w", err)
	}

	for _, s := range subjects {
		out[s] = struct{}{}
	}
	return out, nil
}

func (d *GormDirectory) Follows(ctx context.Context, requester string, dids []string) (*FollowState, error) {
	out := &FollowState{
		Following:  make(map[string]string),
		FollowedBy: make(map[string]string),
	}
	if requester == "" || len(dids) == 0 {
		return out, nil
	}

	var follows []models.FollowRecord
	if err := d.db.WithContext(ctx).
		Where("(follower = ? AND target IN ?) OR (target = ? AND follower IN ?)", requester, dids, requester, dids).
		Find(&follows).Error; err != nil {
		return nil, fmt.Errorf("loading follows: %w", err)
	}

	for _, f := range follows {
		if f.Follower == requester {
			out.Following[f.Target] = f.Uri
		}
		if f.Target == requester {
			out.FollowedBy[f.Follower] = f.Uri
		}
	}
	return out, nil
}
