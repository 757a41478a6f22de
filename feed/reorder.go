package feed

import "github.com/yuuzone/yuuzone/models"

// skipDistance is the number of normally-ranked posts an index-boosted
// post jumps ahead of. The formula is capped at 3 and scales with 15%
// of an estimated total-posts count; the estimate floors at 100, so in
// practice the cap always wins. Kept as-is to match the observable
// ranking.
func skipDistance(pageLen int) int {
	est := 5 * pageLen
	if est < 100 {
		est = 100
	}
	d := est * 15 / 100
	if d > 3 {
		d = 3
	}
	return d
}

// reorder advances index-boosted posts earlier in an organic result
// page without granting them a guaranteed slot. The page is split, in
// original order, into the index-boosted subset and the rest; the merge
// then alternates: emit one boosted post, skip the next skipDistance
// normal posts (they lose their placement on this page), emit one
// normal post. Once either subset runs out the remainder of the other
// is emitted in order. The result is truncated to target.
//
// With no index-boost ids this is a flag-free passthrough of the first
// target posts.
func reorder(organic []models.Post, indexIDs map[uint]bool, target int) []RankedPost {
	if target < 0 {
		target = 0
	}

	if len(indexIDs) == 0 {
		out := make([]RankedPost, 0, min(target, len(organic)))
		for _, p := range organic {
			if len(out) >= target {
				break
			}
			out = append(out, RankedPost{Post: p})
		}
		return out
	}

	var boosted, normal []models.Post
	for _, p := range organic {
		if indexIDs[p.ID] {
			boosted = append(boosted, p)
		} else {
			normal = append(normal, p)
		}
	}

	skip := skipDistance(len(organic))

	out := make([]RankedPost, 0, min(target, len(organic)))
	bi, ni := 0, 0
	for bi < len(boosted) && ni < len(normal) && len(out) < target {
		out = append(out, RankedPost{Post: boosted[bi], IsBoosted: true, IsIndexBoosted: true})
		bi++

		// The skipped posts are the cost of the promotion; clamp
		// rather than run off the end of a short page.
		ni += skip
		if ni > len(normal) {
			ni = len(normal)
		}
		if ni < len(normal) && len(out) < target {
			out = append(out, RankedPost{Post: normal[ni]})
			ni++
		}
	}

	for ; bi < len(boosted) && len(out) < target; bi++ {
		out = append(out, RankedPost{Post: boosted[bi], IsBoosted: true, IsIndexBoosted: true})
	}
	for ; ni < len(normal) && len(out) < target; ni++ {
		out = append(out, RankedPost{Post: normal[ni]})
	}

	return out
}
