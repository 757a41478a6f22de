// Package store implements the feed repository interfaces and the
// surrounding CRUD reads/writes over gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yuuzone/yuuzone/feed"
	"github.com/yuuzone/yuuzone/models"
)

var ErrNotFound = errors.New("not found")

type PostStore struct {
	db *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

var _ feed.PostSource = (*PostStore)(nil)

// Posts returns one organic page for the scope. "hot" deliberately
// ranks by comment count; the id tiebreak keeps pagination stable when
// sort keys collide.
func (s *PostStore) Posts(ctx context.Context, scope feed.Scope, sort feed.SortKey, dur feed.Duration, excludeIDs []uint, limit, offset int) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("deleted = ?", false)

	switch scope.Kind {
	case feed.ScopeGlobal:
		if len(scope.ThreadIDs) == 0 {
			return nil, nil
		}
		q = q.Where("subthread_id IN ?", scope.ThreadIDs)
	case feed.ScopeThread:
		q = q.Where("subthread_id = ?", scope.ThreadID)
	case feed.ScopeAuthor:
		q = q.Where("author_id = ?", scope.AuthorID)
	default:
		return nil, fmt.Errorf("unrecognized feed scope: %d", scope.Kind)
	}

	if w := dur.Window(); w > 0 {
		q = q.Where("created_at > ?", time.Now().Add(-w))
	}
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}

	var order string
	switch sort {
	case feed.SortTop:
		order = "karma DESC, id DESC"
	case feed.SortNew:
		order = "created_at DESC, id DESC"
	case feed.SortHot:
		order = "comment_count DESC, id DESC"
	default:
		return nil, fmt.Errorf("unrecognized sort key: %q", sort)
	}

	var posts []models.Post
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostStore) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	return s.db.WithContext(ctx).Model(&models.Subthread{}).
		Where("id = ?", post.SubthreadID).
		Update("post_count", gorm.Expr("post_count + 1")).Error
}

func (s *PostStore) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ? AND deleted = ?", id, false).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost soft-deletes so historical boost and vote rows keep a
// referent.
func (s *PostStore) DeletePost(ctx context.Context, id, authorID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND author_id = ? AND deleted = ?", id, authorID, false).
		Update("deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyVote upserts the viewer's vote on a post and keeps the
// denormalized karma column in step. Re-casting the same direction is a
// no-op; switching direction moves karma by two.
func (s *PostStore) ApplyVote(ctx context.Context, postID, userID uint, dir models.VoteDir) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev models.Vote
		err := tx.First(&prev, "post_id = ? AND user_id = ?", postID, userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			prev = models.Vote{}
		case err != nil:
			return err
		case prev.Dir == dir:
			return nil
		}

		vote := models.Vote{PostID: postID, UserID: userID, Dir: dir}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"dir", "updated_at"}),
		}).Create(&vote).Error; err != nil {
			return fmt.Errorf("recording vote: %w", err)
		}

		delta := dir.Score() - prev.Dir.Score()
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			Update("karma", gorm.Expr("karma + ?", delta)).Error
	})
}

// AddComment inserts a comment and bumps the post's denormalized
// comment count, which "hot" ranks by.
func (s *PostStore) AddComment(ctx context.Context, comment *models.Comment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return fmt.Errorf("creating comment: %w", err)
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error
	})
}
