package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yuuzone/yuuzone/models"
)

// organicOverfetch is how many times the remaining page budget we ask
// the post store for, so the reorderer has material to promote from.
const organicOverfetch = 2

// Assembler produces the final ordered feed page for a request. All
// collaborators are injected; the assembler itself only reads.
type Assembler struct {
	posts  PostSource
	boosts BoostSource
	vis    Visibility

	tracer trace.Tracer
	log    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewAssembler(posts PostSource, boosts BoostSource, vis Visibility, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		posts:  posts,
		boosts: boosts,
		vis:    vis,
		tracer: otel.Tracer("feed"),
		log:    log.With("system", "feed"),
		now:    time.Now,
	}
}

// GetFeed returns at most page.Limit ranked posts for the scope.
//
// The guaranteed-boost region sits at the head of the full ranking, so
// a page whose offset lands inside it is filled first from the top
// boosts and then from organic rank zero; a page past it maps its
// offset into the organic ranking shifted by the region's length.
// Failures on the boost path degrade the page to organic-only; failures
// on the organic path are returned to the caller.
func (a *Assembler) GetFeed(ctx context.Context, viewer uint, scope Scope, sort SortKey, dur Duration, page Page) ([]RankedPost, error) {
	ctx, span := a.tracer.Start(ctx, "GetFeed")
	defer span.End()

	if page.Limit <= 0 {
		return nil, fmt.Errorf("page limit must be positive, got %d", page.Limit)
	}
	if page.Offset < 0 {
		return nil, fmt.Errorf("page offset must not be negative, got %d", page.Offset)
	}

	timer := feedAssembleDuration.WithLabelValues(scope.Kind.String())
	defer func(start time.Time) { timer.Observe(time.Since(start).Seconds()) }(time.Now())

	now := a.now()
	top, indexIDs := a.partition(ctx, viewer, scope, dur, now)

	// Split the page budget across the guaranteed-boost boundary.
	var (
		topSlice      []models.Post
		remaining     int
		organicOffset int
	)
	if page.Offset < len(top) {
		end := page.Offset + page.Limit
		if end > len(top) {
			end = len(top)
		}
		topSlice = top[page.Offset:end]
		remaining = page.Limit - len(topSlice)
		organicOffset = 0
	} else {
		remaining = page.Limit
		organicOffset = page.Offset - len(top)
	}

	out := make([]RankedPost, 0, page.Limit)
	for _, p := range topSlice {
		out = append(out, RankedPost{Post: p, IsBoosted: true})
	}

	if remaining > 0 {
		// Exclude every top boost, sliced or not, so none resurface
		// through the organic ranking. Index-boosted posts stay
		// eligible; the reorderer flags them.
		exclude := make([]uint, 0, len(top))
		for _, p := range top {
			exclude = append(exclude, p.ID)
		}

		organic, err := a.posts.Posts(ctx, scope, sort, dur, exclude, remaining*organicOverfetch, organicOffset)
		if err != nil {
			return nil, fmt.Errorf("failed to get posts: %w", err)
		}

		if a.vis != nil {
			visible := organic[:0]
			for i := range organic {
				if a.vis.Visible(ctx, viewer, &organic[i]) {
					visible = append(visible, organic[i])
				}
			}
			organic = visible
		}

		out = append(out, reorder(organic, indexIDs, remaining)...)
	}

	out = dedupeRanked(out)
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}

	feedPagesServed.WithLabelValues(scope.Kind.String(), string(sort)).Inc()
	return out, nil
}

// partition fetches and partitions the scope's boosts. A failing boost
// store is ranking noise, not a request failure: the page silently
// falls back to pure organic ranking.
func (a *Assembler) partition(ctx context.Context, viewer uint, scope Scope, dur Duration, now time.Time) ([]models.Post, map[uint]bool) {
	boosts, err := a.boosts.ActiveBoosts(ctx, scope)
	if err != nil {
		a.log.Error("boost fetch failed, serving organic-only feed", "scope", scope.Kind.String(), "err", err)
		boostDegradations.WithLabelValues(scope.Kind.String()).Inc()
		return nil, nil
	}

	return partitionBoosts(ctx, boosts, a.vis, viewer, dur, now)
}

// dedupeRanked drops repeated post ids, keeping the first occurrence.
// A post can arrive through both the boost and organic paths when a
// boost expires between the two queries.
func dedupeRanked(in []RankedPost) []RankedPost {
	seen := make(map[uint]bool, len(in))
	out := in[:0]
	for _, rp := range in {
		if seen[rp.Post.ID] {
			continue
		}
		seen[rp.Post.ID] = true
		out = append(out, rp)
	}
	return out
}
