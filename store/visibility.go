package store

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"

	"github.com/yuuzone/yuuzone/feed"
	"github.com/yuuzone/yuuzone/models"
)

const visibilityCacheSize = 8192

// VisibilityStore answers ban and block checks for the feed core, with
// an in-process LRU over the hot (thread,user) and (author,viewer)
// pairs. Entries are written on both hit and miss; ban and block writes
// go through Invalidate.
type VisibilityStore struct {
	db    *gorm.DB
	cache *lru.Cache[string, bool]
	log   *slog.Logger
}

func NewVisibilityStore(db *gorm.DB, log *slog.Logger) (*VisibilityStore, error) {
	c, err := lru.New[string, bool](visibilityCacheSize)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &VisibilityStore{
		db:    db,
		cache: c,
		log:   log.With("system", "visibility"),
	}, nil
}

var _ feed.Visibility = (*VisibilityStore)(nil)

// Visible reports whether the viewer may see the post. Anonymous
// viewers see everything; authenticated viewers lose posts in threads
// they are banned from and posts by authors who blocked them. Lookup
// failures err on the side of showing the post.
func (v *VisibilityStore) Visible(ctx context.Context, viewer uint, post *models.Post) bool {
	if viewer == 0 || post == nil {
		return post != nil
	}

	banned, err := v.IsBanned(ctx, post.SubthreadID, viewer)
	if err != nil {
		v.log.Error("ban lookup failed", "thread", post.SubthreadID, "viewer", viewer, "err", err)
		return true
	}
	if banned {
		return false
	}

	blocked, err := v.HasBlocked(ctx, post.AuthorID, viewer)
	if err != nil {
		v.log.Error("block lookup failed", "author", post.AuthorID, "viewer", viewer, "err", err)
		return true
	}
	return !blocked
}

func (v *VisibilityStore) IsBanned(ctx context.Context, threadID, userID uint) (bool, error) {
	key := fmt.Sprintf("ban/%d/%d", threadID, userID)
	if hit, ok := v.cache.Get(key); ok {
		return hit, nil
	}

	var count int64
	if err := v.db.WithContext(ctx).Model(&models.SubthreadBan{}).
		Where("subthread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}

	v.cache.Add(key, count > 0)
	return count > 0, nil
}

func (v *VisibilityStore) HasBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	key := fmt.Sprintf("block/%d/%d", blockerID, blockedID)
	if hit, ok := v.cache.Get(key); ok {
		return hit, nil
	}

	var count int64
	if err := v.db.WithContext(ctx).Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error; err != nil {
		return false, err
	}

	v.cache.Add(key, count > 0)
	return count > 0, nil
}

// InvalidateBan drops the cached ban entry after a ban write.
func (v *VisibilityStore) InvalidateBan(threadID, userID uint) {
	v.cache.Remove(fmt.Sprintf("ban/%d/%d", threadID, userID))
}

// InvalidateBlock drops the cached block entry after a block write.
func (v *VisibilityStore) InvalidateBlock(blockerID, blockedID uint) {
	v.cache.Remove(fmt.Sprintf("block/%d/%d", blockerID, blockedID))
}
