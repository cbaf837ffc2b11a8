package sqlite

import (
	"context"
	"testing"

	"github.com/acolucci/partforge/internal/domain/document"
	"github.com/acolucci/partforge/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	doc := testDocument("QQQ_1000-0001", document.StateWIP)
	require.NoError(t, repo.Create(ctx, doc))

	loaded, err := repo.Get(ctx, "QQQ_1000-0001")
	require.NoError(t, err)
	require.Equal(t, document.TypePart, loaded.Type)
	require.Equal(t, document.StateWIP, loaded.State)
	require.Equal(t, "QQQ", loaded.Machine)
	require.Equal(t, 0, loaded.Revision)
}

func TestDocumentRepository_DuplicateCode(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	require.NoError(t, repo.Create(ctx, testDocument("QQQ_1000-0001", document.StateWIP)))
	err := repo.Create(ctx, testDocument("QQQ_1000-0001", document.StateWIP))
	require.ErrorIs(t, err, repository.ErrDuplicateCode)
}

func TestDocumentRepository_GetMissing(t *testing.T) {
	db := NewTestDB(t)
	_, err := NewDocumentRepository(db).Get(context.Background(), "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDocumentRepository_Update(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	doc := testDocument("QQQ_1000-0001", document.StateWIP)
	require.NoError(t, repo.Create(ctx, doc))

	doc.State = document.StateReleased
	doc.Revision = 1
	doc.ModelPath = "/archive/QQQ/1000/rel/QQQ_1000-0001.sldprt"
	require.NoError(t, repo.Update(ctx, doc))

	loaded, err := repo.Get(ctx, doc.Code)
	require.NoError(t, err)
	require.Equal(t, document.StateReleased, loaded.State)
	require.Equal(t, 1, loaded.Revision)
	require.Equal(t, doc.ModelPath, loaded.ModelPath)

	missing := testDocument("QQQ_1000-9999", document.StateWIP)
	require.ErrorIs(t, repo.Update(ctx, missing), repository.ErrNotFound)
}

func TestDocumentRepository_ListFilters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	a := testDocument("QQQ_1000-0001", document.StateWIP)
	b := testDocument("QQQ_1000-0002", document.StateReleased)
	c := testDocument("QQQ_2000-0001", document.StateObsolete)
	c.Group = "2000"
	for _, d := range []*document.Document{a, b, c} {
		require.NoError(t, repo.Create(ctx, d))
	}

	// obsolete hidden by default
	docs, err := repo.List(ctx, document.ListOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = repo.List(ctx, document.ListOptions{IncludeObsolete: true})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	docs, err = repo.List(ctx, document.ListOptions{State: document.StateReleased})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "QQQ_1000-0002", docs[0].Code)

	docs, err = repo.List(ctx, document.ListOptions{Group: "2000", IncludeObsolete: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	docs, err = repo.List(ctx, document.ListOptions{Query: "0002"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDocumentRepository_StateNotes(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	require.NoError(t, repo.Create(ctx, testDocument("QQQ_1000-0001", document.StateWIP)))

	note := &document.StateNote{
		Code:      "QQQ_1000-0001",
		Event:     "release",
		FromState: document.StateWIP,
		ToState:   document.StateReleased,
		Note:      "first release",
	}
	require.NoError(t, repo.AddStateNote(ctx, note))
	require.NotZero(t, note.ID)

	notes, err := repo.ListStateNotes(ctx, "QQQ_1000-0001", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "first release", notes[0].Note)
	require.Equal(t, document.StateReleased, notes[0].ToState)
}

func TestDocumentRepository_Registry(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	exists, err := repo.MachineExists(ctx, "QQQ")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.AddMachine(ctx, &document.Machine{Code: "QQQ", Name: "Press line"}))
	exists, err = repo.MachineExists(ctx, "QQQ")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, repo.AddGroup(ctx, &document.Group{Machine: "QQQ", Code: "1000", Name: "Frame"}))
	exists, err = repo.GroupExists(ctx, "QQQ", "1000")
	require.NoError(t, err)
	require.True(t, exists)

	groups, err := repo.ListGroups(ctx, "QQQ")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "Frame", groups[0].Name)

	machines, err := repo.ListMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 1)
}
