package sqlite

import (
	"context"
	"testing"

	"github.com/acolucci/partforge/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogAndList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	entries := []*activity.Entry{
		{Action: activity.ActionCreate, Code: "QQQ_1000-0001", Actor: "alice", Status: "OK"},
		{Action: activity.ActionRelease, Code: "QQQ_1000-0001", Actor: "alice", Status: "OK"},
		{Action: activity.ActionCreate, Code: "QQQ_1000-0002", Actor: "bob", Status: "OK"},
	}
	for _, e := range entries {
		require.NoError(t, repo.Log(ctx, e))
		require.NotZero(t, e.ID)
	}

	all, err := repo.List(ctx, activity.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	require.Equal(t, "QQQ_1000-0002", all[0].Code)

	byCode, err := repo.List(ctx, activity.ListOptions{Code: "QQQ_1000-0001"})
	require.NoError(t, err)
	require.Len(t, byCode, 2)

	byAction, err := repo.List(ctx, activity.ListOptions{Action: activity.ActionRelease})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	require.Equal(t, activity.ActionRelease, byAction[0].Action)

	limited, err := repo.List(ctx, activity.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestActivityRepository_RequiresAction(t *testing.T) {
	db := NewTestDB(t)
	err := NewActivityRepository(db).Log(context.Background(), &activity.Entry{Code: "QQQ_1000-0001"})
	require.Error(t, err)
}
