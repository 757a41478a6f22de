package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Handle   string `gorm:"uniqueIndex"`
	Email    string `gorm:"uniqueIndex"`
	Password string
	Karma    int64
}

type Subthread struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex"`
	Title       string
	Description string
	CreatorID   uint
	MemberCount int64
	PostCount   int64
}

type Post struct {
	gorm.Model
	AuthorID     uint `gorm:"index"`
	SubthreadID  uint `gorm:"index"`
	Title        string
	Content      string
	Media        string
	Karma        int64 `gorm:"index"`
	CommentCount int64
	Deleted      bool
}

type Comment struct {
	gorm.Model
	PostID   uint `gorm:"index"`
	AuthorID uint
	ParentID uint
	Content  string
	Deleted  bool
}

type VoteDir int

const (
	VoteDirUp   = VoteDir(1)
	VoteDirDown = VoteDir(2)
)

func (vd VoteDir) String() string {
	switch vd {
	case VoteDirUp:
		return "up"
	case VoteDirDown:
		return "down"
	default:
		return "<unknown>"
	}
}

func (vd VoteDir) Score() int64 {
	switch vd {
	case VoteDirUp:
		return 1
	case VoteDirDown:
		return -1
	default:
		return 0
	}
}

type Vote struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	PostID    uint `gorm:"index:idx_vote_post_user,unique"`
	UserID    uint `gorm:"index:idx_vote_post_user,unique"`
	Dir       VoteDir
}

// Boost is a paid promotion of a single post by its author. Several
// historical rows may exist for one post; ranking only cares about the
// most recently created row that is still active.
type Boost struct {
	gorm.Model
	PostID   uint `gorm:"index"`
	UserID   uint `gorm:"index"`
	BoostEnd time.Time
	IsActive bool
}

// Active reports whether the boost should participate in ranking at
// the given instant. The expiry comparison is strict: a boost ending
// exactly now is already expired.
func (b *Boost) Active(now time.Time) bool {
	return b.IsActive && b.BoostEnd.After(now)
}

type SubthreadBan struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	SubthreadID uint `gorm:"index:idx_ban_thread_user,unique"`
	UserID      uint `gorm:"index:idx_ban_thread_user,unique"`
	Reason      string
}

type UserBlock struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	BlockerID uint `gorm:"index:idx_block_pair,unique"`
	BlockedID uint `gorm:"index:idx_block_pair,unique"`
}

type Subscription struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UserID      uint `gorm:"index:idx_sub_user_thread,unique"`
	SubthreadID uint `gorm:"index:idx_sub_user_thread,unique"`
}
