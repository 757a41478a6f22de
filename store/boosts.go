package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yuuzone/yuuzone/feed"
	"github.com/yuuzone/yuuzone/models"
)

type BoostStore struct {
	db *gorm.DB
}

func NewBoostStore(db *gorm.DB) *BoostStore {
	return &BoostStore{db: db}
}

var _ feed.BoostSource = (*BoostStore)(nil)

// ActiveBoosts returns the live boosts for a scope, most recent first,
// each joined with its post. A boost whose post row is gone comes back
// with a nil Post; the partitioner skips those rather than this query
// failing the whole feed.
func (s *BoostStore) ActiveBoosts(ctx context.Context, scope feed.Scope) ([]feed.ActiveBoost, error) {
	q := s.db.WithContext(ctx).
		Where("is_active = ? AND boost_end > ?", true, time.Now()).
		Order("created_at DESC")

	switch scope.Kind {
	case feed.ScopeGlobal:
		if len(scope.ThreadIDs) == 0 {
			return nil, nil
		}
		q = q.Where("post_id IN (?)",
			s.db.Model(&models.Post{}).Select("id").Where("subthread_id IN ?", scope.ThreadIDs))
	case feed.ScopeThread:
		q = q.Where("post_id IN (?)",
			s.db.Model(&models.Post{}).Select("id").Where("subthread_id = ?", scope.ThreadID))
	case feed.ScopeAuthor:
		q = q.Where("user_id = ?", scope.AuthorID)
	default:
		return nil, fmt.Errorf("unrecognized feed scope: %d", scope.Kind)
	}

	var boosts []models.Boost
	if err := q.Find(&boosts).Error; err != nil {
		return nil, fmt.Errorf("fetching active boosts: %w", err)
	}
	if len(boosts) == 0 {
		return nil, nil
	}

	postIDs := make([]uint, 0, len(boosts))
	for _, b := range boosts {
		postIDs = append(postIDs, b.PostID)
	}

	var posts []models.Post
	if err := s.db.WithContext(ctx).Find(&posts, "id IN ?", postIDs).Error; err != nil {
		return nil, fmt.Errorf("resolving boosted posts: %w", err)
	}
	byID := make(map[uint]*models.Post, len(posts))
	for i := range posts {
		byID[posts[i].ID] = &posts[i]
	}

	out := make([]feed.ActiveBoost, 0, len(boosts))
	for _, b := range boosts {
		out = append(out, feed.ActiveBoost{Boost: b, Post: byID[b.PostID]})
	}
	return out, nil
}

// CreateBoost records a paid promotion. Only the post's author may
// boost it; any previous live boost for the post stays in the table and
// is superseded by recency.
func (s *BoostStore) CreateBoost(ctx context.Context, postID, userID uint, duration time.Duration) (*models.Boost, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, fmt.Errorf("only the author can boost a post")
	}

	boost := models.Boost{
		PostID:   postID,
		UserID:   userID,
		BoostEnd: time.Now().Add(duration),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&boost).Error; err != nil {
		return nil, fmt.Errorf("creating boost: %w", err)
	}
	return &boost, nil
}

// DeactivateBoost soft-disables a boost ahead of its expiry.
func (s *BoostStore) DeactivateBoost(ctx context.Context, boostID, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Boost{}).
		Where("id = ? AND user_id = ?", boostID, userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
