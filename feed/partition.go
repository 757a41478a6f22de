package feed

import (
	"context"
	"time"

	"github.com/yuuzone/yuuzone/models"
)

// maxTopBoosts is the number of guaranteed head slots per feed page.
const maxTopBoosts = 3

// partitionBoosts splits the active boosts for a scope into the posts
// that get guaranteed head placement and the post ids that only get
// reordered earlier within the organic ranking.
//
// Boosts arrive most-recent-first and may contain several rows per
// post; the first occurrence wins. Candidates whose post row is
// missing, falls outside the duration window, or is not visible to the
// viewer are skipped entirely. The first three survivors become the top
// boosts; every later survivor contributes its post id to the
// index-boost set. The two outputs never share a post id.
func partitionBoosts(ctx context.Context, boosts []ActiveBoost, vis Visibility, viewer uint, dur Duration, now time.Time) ([]models.Post, map[uint]bool) {
	var top []models.Post
	indexIDs := make(map[uint]bool)

	seen := make(map[uint]bool, len(boosts))
	for _, ab := range boosts {
		if seen[ab.Boost.PostID] {
			continue
		}
		seen[ab.Boost.PostID] = true

		if ab.Post == nil || ab.Post.Deleted {
			continue
		}
		if !ab.Boost.Active(now) {
			continue
		}
		if !dur.Contains(ab.Post.CreatedAt, now) {
			continue
		}
		if vis != nil && !vis.Visible(ctx, viewer, ab.Post) {
			continue
		}

		if len(top) < maxTopBoosts {
			top = append(top, *ab.Post)
		} else {
			indexIDs[ab.Post.ID] = true
		}
	}

	return top, indexIDs
}
