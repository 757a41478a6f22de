package feed

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yuuzone/yuuzone/models"
)

// fakePostSource serves pages out of a fixed organic ranking, honoring
// the exclusion list and offset/limit the way the real store does.
type fakePostSource struct {
	ranking []models.Post
	err     error

	lastExclude []uint
	lastLimit   int
	lastOffset  int
	calls       int
}

func (f *fakePostSource) Posts(ctx context.Context, scope Scope, sort SortKey, dur Duration, excludeIDs []uint, limit, offset int) ([]models.Post, error) {
	f.calls++
	f.lastExclude = excludeIDs
	f.lastLimit = limit
	f.lastOffset = offset

	if f.err != nil {
		return nil, f.err
	}

	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	var filtered []models.Post
	for _, p := range f.ranking {
		if !excluded[p.ID] {
			filtered = append(filtered, p)
		}
	}

	if offset >= len(filtered) {
		return nil, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

type fakeBoostSource struct {
	boosts []ActiveBoost
	err    error
}

func (f *fakeBoostSource) ActiveBoosts(ctx context.Context, scope Scope) ([]ActiveBoost, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.boosts, nil
}

// fakeVisibility hides the listed post ids from everyone.
type fakeVisibility struct {
	hidden map[uint]bool
}

func (f *fakeVisibility) Visible(ctx context.Context, viewer uint, post *models.Post) bool {
	return !f.hidden[post.ID]
}

func testPost(id uint, created time.Time) models.Post {
	return models.Post{Model: gorm.Model{ID: id, CreatedAt: created}}
}

// testBoost builds an active boost for a freshly created post. The
// boost's CreatedAt only matters relative to its neighbors in the
// slice, which is already ordered most-recent-first.
func testBoost(postID uint, now time.Time) ActiveBoost {
	p := testPost(postID, now.Add(-time.Hour))
	return ActiveBoost{
		Boost: models.Boost{
			PostID:   postID,
			BoostEnd: now.Add(24 * time.Hour),
			IsActive: true,
		},
		Post: &p,
	}
}

// organicRanking builds n posts with descending rank, ids first..first+n-1.
func organicRanking(first uint, n int, now time.Time) []models.Post {
	out := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, testPost(first+uint(i), now.Add(-time.Duration(i+1)*time.Minute)))
	}
	return out
}

func rankedIDs(rps []RankedPost) []uint {
	out := make([]uint, 0, len(rps))
	for _, rp := range rps {
		out = append(out, rp.Post.ID)
	}
	return out
}
