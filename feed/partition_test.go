package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionTopBoostCap(t *testing.T) {
	now := time.Now()
	var boosts []ActiveBoost
	for id := uint(1); id <= 8; id++ {
		boosts = append(boosts, testBoost(id, now))
	}

	top, indexIDs := partitionBoosts(context.Background(), boosts, nil, 0, DurationAlltime, now)

	require.Len(t, top, 3)
	assert.Equal(t, uint(1), top[0].ID)
	assert.Equal(t, uint(2), top[1].ID)
	assert.Equal(t, uint(3), top[2].ID)

	assert.Len(t, indexIDs, 5)
	for _, p := range top {
		assert.False(t, indexIDs[p.ID], "top boost %d leaked into index set", p.ID)
	}
}

func TestPartitionDeduplicatesByPost(t *testing.T) {
	now := time.Now()
	boosts := []ActiveBoost{
		testBoost(1, now),
		testBoost(2, now),
		testBoost(1, now), // older repeat of post 1
		testBoost(3, now),
		testBoost(2, now),
	}

	top, indexIDs := partitionBoosts(context.Background(), boosts, nil, 0, DurationAlltime, now)

	require.Equal(t, []uint{1, 2, 3}, []uint{top[0].ID, top[1].ID, top[2].ID})
	assert.Empty(t, indexIDs)
}

func TestPartitionExpiryBoundary(t *testing.T) {
	now := time.Now()

	expiresNow := testBoost(1, now)
	expiresNow.Boost.BoostEnd = now

	inactive := testBoost(2, now)
	inactive.Boost.IsActive = false

	live := testBoost(3, now)

	top, indexIDs := partitionBoosts(context.Background(), []ActiveBoost{expiresNow, inactive, live}, nil, 0, DurationAlltime, now)

	require.Len(t, top, 1)
	assert.Equal(t, uint(3), top[0].ID)
	assert.Empty(t, indexIDs)
}

func TestPartitionDurationWindow(t *testing.T) {
	now := time.Now()

	recent := testBoost(1, now)
	stale := testBoost(2, now)
	stalePost := testPost(2, now.Add(-48*time.Hour))
	stale.Post = &stalePost

	top, _ := partitionBoosts(context.Background(), []ActiveBoost{recent, stale}, nil, 0, DurationDay, now)

	require.Len(t, top, 1)
	assert.Equal(t, uint(1), top[0].ID)
}

func TestPartitionVisibility(t *testing.T) {
	now := time.Now()
	boosts := []ActiveBoost{testBoost(1, now), testBoost(2, now), testBoost(3, now)}
	vis := &fakeVisibility{hidden: map[uint]bool{2: true}}

	top, _ := partitionBoosts(context.Background(), boosts, vis, 7, DurationAlltime, now)

	require.Equal(t, []uint{1, 3}, []uint{top[0].ID, top[1].ID})
}

func TestPartitionSkipsMissingAndDeletedPosts(t *testing.T) {
	now := time.Now()

	missing := testBoost(1, now)
	missing.Post = nil

	deleted := testBoost(2, now)
	deleted.Post.Deleted = true

	ok := testBoost(3, now)

	top, indexIDs := partitionBoosts(context.Background(), []ActiveBoost{missing, deleted, ok}, nil, 0, DurationAlltime, now)

	require.Len(t, top, 1)
	assert.Equal(t, uint(3), top[0].ID)
	assert.Empty(t, indexIDs)
}
