package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yuuzone/yuuzone/models"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("handle or email already taken")
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "handle = ?", handle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) GetSubthreadByName(ctx context.Context, name string) (*models.Subthread, error) {
	var st models.Subthread
	if err := s.db.WithContext(ctx).First(&st, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *UserStore) CreateSubthread(ctx context.Context, st *models.Subthread) error {
	if err := s.db.WithContext(ctx).Create(st).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("subthread name already taken")
		}
		return fmt.Errorf("creating subthread: %w", err)
	}
	return nil
}

// Subscribe adds the user to a subthread and bumps its member count.
// Duplicate subscriptions are a no-op.
func (s *UserStore) Subscribe(ctx context.Context, userID, threadID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&models.Subscription{UserID: userID, SubthreadID: threadID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("creating subscription: %w", err)
		}
		return tx.Model(&models.Subthread{}).Where("id = ?", threadID).
			Update("member_count", gorm.Expr("member_count + 1")).Error
	})
}

func (s *UserStore) Unsubscribe(ctx context.Context, userID, threadID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND subthread_id = ?", userID, threadID).
			Delete(&models.Subscription{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Subthread{}).Where("id = ?", threadID).
			Update("member_count", gorm.Expr("member_count - 1")).Error
	})
}

// SubscribedThreadIDs is the scope of the viewer's home feed.
func (s *UserStore) SubscribedThreadIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Pluck("subthread_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return ids, nil
}
