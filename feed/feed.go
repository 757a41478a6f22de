// Package feed assembles paginated post listings for the home, popular,
// per-thread and per-author feeds. It merges two ranked inputs: paid
// boosts (the three most recent get guaranteed head slots, the rest get
// reordered earlier within the organic ranking) and organically ranked
// posts from the post store.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/yuuzone/yuuzone/models"
)

type SortKey string

const (
	SortTop SortKey = "top"
	SortNew SortKey = "new"
	SortHot SortKey = "hot"
)

func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortTop, SortNew, SortHot:
		return SortKey(s), nil
	default:
		return "", fmt.Errorf("unknown sort key: %q", s)
	}
}

type Duration string

const (
	DurationDay     Duration = "day"
	DurationWeek    Duration = "week"
	DurationMonth   Duration = "month"
	DurationYear    Duration = "year"
	DurationAlltime Duration = "alltime"
)

func ParseDuration(s string) (Duration, error) {
	switch Duration(s) {
	case DurationDay, DurationWeek, DurationMonth, DurationYear, DurationAlltime:
		return Duration(s), nil
	default:
		return "", fmt.Errorf("unknown duration: %q", s)
	}
}

// Window returns the trailing time window for the duration, or zero for
// alltime.
func (d Duration) Window() time.Duration {
	switch d {
	case DurationDay:
		return 24 * time.Hour
	case DurationWeek:
		return 7 * 24 * time.Hour
	case DurationMonth:
		return 30 * 24 * time.Hour
	case DurationYear:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// Contains reports whether a post created at the given instant falls
// inside the trailing window ending at now.
func (d Duration) Contains(created, now time.Time) bool {
	w := d.Window()
	if w == 0 {
		return true
	}
	return created.After(now.Add(-w))
}

type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota + 1
	ScopeThread
	ScopeAuthor
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeThread:
		return "thread"
	case ScopeAuthor:
		return "author"
	default:
		return "<unknown>"
	}
}

// Scope is the subset of posts a feed request ranks over: a set of
// threads (home/all), one thread, or one author's posts.
type Scope struct {
	Kind      ScopeKind
	ThreadIDs []uint
	ThreadID  uint
	AuthorID  uint
}

func GlobalScope(threadIDs []uint) Scope {
	return Scope{Kind: ScopeGlobal, ThreadIDs: threadIDs}
}

func ThreadScope(threadID uint) Scope {
	return Scope{Kind: ScopeThread, ThreadID: threadID}
}

func AuthorScope(authorID uint) Scope {
	return Scope{Kind: ScopeAuthor, AuthorID: authorID}
}

// Page is the requested slice of the ranked result.
type Page struct {
	Offset int
	Limit  int
}

// RankedPost decorates a post with its promotion flags for
// presentation. Index-boosted posts also carry IsBoosted so clients
// highlight them the same way as top-boosted posts.
type RankedPost struct {
	Post           models.Post
	IsBoosted      bool
	IsIndexBoosted bool
}

// ActiveBoost is a boost row joined with its post. Post may be nil when
// the post row disappeared between the join and the read; callers skip
// those.
type ActiveBoost struct {
	Boost models.Boost
	Post  *models.Post
}

// PostSource retrieves organically ranked posts for a scope. Results
// are ordered by the sort key descending, restricted to the duration
// window, and never contain any id in excludeIDs.
type PostSource interface {
	Posts(ctx context.Context, scope Scope, sort SortKey, dur Duration, excludeIDs []uint, limit, offset int) ([]models.Post, error)
}

// BoostSource retrieves the currently active boosts for a scope,
// ordered by creation time descending (most recent first).
type BoostSource interface {
	ActiveBoosts(ctx context.Context, scope Scope) ([]ActiveBoost, error)
}

// Visibility decides whether a viewer may see a post: thread bans and
// author blocks. Viewer 0 is anonymous.
type Visibility interface {
	Visible(ctx context.Context, viewer uint, post *models.Post) bool
}
