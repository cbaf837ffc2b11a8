package sqlite

import (
	"context"
	"testing"

	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/acolucci/partforge/internal/repository"
	"github.com/stretchr/testify/require"
)

func partScope() document.CounterScope {
	return document.CounterScope{Type: document.TypePart, Machine: "QQQ", Group: "1000"}
}

func TestCounterRepository_AscendingFromOne(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	for want := 1; want <= 5; want++ {
		got, err := repo.Allocate(ctx, partScope(), document.Ascending, 9999)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestCounterRepository_DescendingFromMax(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	scope := document.CounterScope{Type: document.TypeAssembly, Machine: "QQQ", Group: "1000"}
	got, err := repo.Allocate(ctx, scope, document.Descending, 9999)
	require.NoError(t, err)
	require.Equal(t, 9999, got)

	got, err = repo.Allocate(ctx, scope, document.Descending, 9999)
	require.NoError(t, err)
	require.Equal(t, 9998, got)
}

func TestCounterRepository_SharedRowIndependentCursors(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	// parts and assemblies in the same group share a counter row but not a cursor
	part, err := repo.Allocate(ctx, partScope(), document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, part)

	assyScope := document.CounterScope{Type: document.TypeAssembly, Machine: "QQQ", Group: "1000"}
	assy, err := repo.Allocate(ctx, assyScope, document.Descending, 9999)
	require.NoError(t, err)
	require.Equal(t, 9999, assy)

	part, err = repo.Allocate(ctx, partScope(), document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 2, part)
}

func TestCounterRepository_VariantScopesAreDistinct(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	plain := partScope()
	variant := partScope()
	variant.Variant = "SKL"

	got, err := repo.Allocate(ctx, plain, document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	got, err = repo.Allocate(ctx, variant, document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, got)
}

func TestCounterRepository_Uniqueness(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	seen := make(map[int]bool)
	prev := 0
	for i := 0; i < 50; i++ {
		got, err := repo.Allocate(ctx, partScope(), document.Ascending, 9999)
		require.NoError(t, err)
		require.False(t, seen[got], "value %d allocated twice", got)
		require.Greater(t, got, prev, "ascending allocation regressed")
		seen[got] = true
		prev = got
	}
}

func TestCounterRepository_AscendingExhaustion(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	// 1-digit sequence: nine values, then the scope is dead
	for want := 1; want <= 9; want++ {
		got, err := repo.Allocate(ctx, partScope(), document.Ascending, 9)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := repo.Allocate(ctx, partScope(), document.Ascending, 9)
	require.ErrorIs(t, err, repository.ErrScopeExhausted)

	// the cursor did not move: still exhausted, not wrapped
	_, err = repo.Allocate(ctx, partScope(), document.Ascending, 9)
	require.ErrorIs(t, err, repository.ErrScopeExhausted)
}

func TestCounterRepository_DescendingExhaustion(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	scope := document.CounterScope{Type: document.TypeAssembly, Machine: "QQQ", Group: "1000"}
	for want := 9; want >= 1; want-- {
		got, err := repo.Allocate(ctx, scope, document.Descending, 9)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := repo.Allocate(ctx, scope, document.Descending, 9)
	require.ErrorIs(t, err, repository.ErrScopeExhausted)
}

func TestCounterRepository_PeekDoesNotConsume(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	next, err := repo.Peek(ctx, partScope(), document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	next, err = repo.Peek(ctx, partScope(), document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	got, err := repo.Allocate(ctx, partScope(), document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	next, err = repo.Peek(ctx, partScope(), document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 2, next)
}

func TestCounterRepository_VersionScopes(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	machineScope := document.CounterScope{Type: document.TypeMachine, Machine: "QQQ"}
	got, err := repo.Allocate(ctx, machineScope, document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	got, err = repo.Allocate(ctx, machineScope, document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 2, got)

	// group versions count independently of machine versions
	groupScope := document.CounterScope{Type: document.TypeGroup, Machine: "QQQ", Group: "1000"}
	got, err = repo.Allocate(ctx, groupScope, document.Ascending, 9999)
	require.NoError(t, err)
	require.Equal(t, 1, got)
}

func TestCounterRepository_VersionRejectsDescending(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewCounterRepository(db)

	scope := document.CounterScope{Type: document.TypeMachine, Machine: "QQQ"}
	_, err := repo.Allocate(ctx, scope, document.Descending, 9999)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}
