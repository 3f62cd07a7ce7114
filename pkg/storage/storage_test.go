package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/record"
)

func openImage(t *testing.T, path string) *Image {
	t.Helper()
	img, err := Open(path)
	require.NoError(t, err)
	return img
}

func TestImage_Databases(t *testing.T) {
	ctx := context.Background()
	img := openImage(t, t.TempDir())
	defer img.Close()

	dbs, err := img.Databases(ctx)
	require.NoError(t, err)
	assert.Empty(t, dbs)

	memos, err := img.CreateDatabase(ctx, "Memos")
	require.NoError(t, err)
	tasks, err := img.CreateDatabase(ctx, "Tasks")
	require.NoError(t, err)
	again, err := img.CreateDatabase(ctx, "Memos")
	require.NoError(t, err)

	assert.Equal(t, memos, again)
	assert.NotEqual(t, memos, tasks)

	dbs, err = img.Databases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []desktop.DBInfo{{Number: memos, Name: "Memos"}, {Number: tasks, Name: "Tasks"}}, dbs)
}

func TestImage_Entries(t *testing.T) {
	ctx := context.Background()
	img := openImage(t, t.TempDir())
	defer img.Close()

	dbID, err := img.CreateDatabase(ctx, "Memos")
	require.NoError(t, err)

	require.NoError(t, img.PutEntry(ctx, dbID, desktop.Entry{Index: 3, RecordID: 30, RecType: 1, Dirty: true, Body: []byte("three")}))
	require.NoError(t, img.PutEntry(ctx, dbID, desktop.Entry{Index: 1, RecordID: 10, Body: []byte("one")}))
	require.NoError(t, img.PutEntry(ctx, dbID, desktop.Entry{Index: 3, RecordID: 30, RecType: 1, Body: []byte("three again")}))

	entries, err := img.Entries(ctx, dbID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, desktop.Entry{Index: 1, RecordID: 10, Body: []byte("one")}, entries[0])
	assert.Equal(t, desktop.Entry{Index: 3, RecordID: 30, RecType: 1, Body: []byte("three again")}, entries[1])

	require.NoError(t, img.DeleteEntry(ctx, dbID, 1))
	_, err = img.GetEntry(ctx, dbID, 1)
	assert.True(t, errors.Is(err, desktop.ErrIndexNotFound))
	assert.True(t, errors.Is(img.DeleteEntry(ctx, dbID, 1), desktop.ErrIndexNotFound))

	_, err = img.Entries(ctx, 42)
	assert.True(t, errors.Is(err, desktop.ErrDatabaseNotFound))
	_, err = img.GetEntry(ctx, 42, 0)
	assert.True(t, errors.Is(err, desktop.ErrDatabaseNotFound))
	assert.True(t, errors.Is(img.PutEntry(ctx, 42, desktop.Entry{}), desktop.ErrDatabaseNotFound))
}

func TestImage_Journal(t *testing.T) {
	ctx := context.Background()
	img := openImage(t, t.TempDir())
	defer img.Close()

	dbID, err := img.CreateDatabase(ctx, "Memos")
	require.NoError(t, err)
	require.NoError(t, img.PutEntry(ctx, dbID, desktop.Entry{Index: 0, RecordID: 7, Dirty: true}))
	require.NoError(t, img.DeleteEntry(ctx, dbID, 0))

	journal, err := img.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, journal, 2)

	assert.Equal(t, OpPut, journal[0].Op)
	assert.Equal(t, uint32(7), journal[0].RecordID)
	assert.True(t, journal[0].Dirty)
	assert.Equal(t, OpDelete, journal[1].Op)
	assert.Equal(t, uint32(7), journal[1].RecordID)
	assert.NotEqual(t, journal[0].ID, journal[1].ID)
	assert.False(t, journal[0].Time.IsZero())
}

func TestImage_JournalOrderAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	img := openImage(t, dir)
	dbID, err := img.CreateDatabase(ctx, "Memos")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, img.PutEntry(ctx, dbID, desktop.Entry{Index: uint16(i), RecordID: uint32(i + 1)}))
	}
	require.NoError(t, img.Close())

	img = openImage(t, dir)
	defer img.Close()
	require.NoError(t, img.DeleteEntry(ctx, dbID, 0))
	require.NoError(t, img.PutEntry(ctx, dbID, desktop.Entry{Index: 0, RecordID: 99}))

	journal, err := img.Journal(ctx)
	require.NoError(t, err)
	require.Len(t, journal, 52)
	for i := 0; i < 50; i++ {
		assert.Equal(t, uint32(i+1), journal[i].RecordID, "entry %d", i)
	}
	assert.Equal(t, OpDelete, journal[50].Op)
	assert.Equal(t, uint32(1), journal[50].RecordID)
	assert.Equal(t, OpPut, journal[51].Op)
	assert.Equal(t, uint32(99), journal[51].RecordID)
}

func TestImage_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "image")

	img := openImage(t, path)
	dev, err := desktop.NewDevice(img, nil)
	require.NoError(t, err)

	m := record.NewMemo()
	m.Title = "groceries"
	id, err := dev.Put(ctx, m)
	require.NoError(t, err)
	require.NoError(t, img.Close())

	img = openImage(t, path)
	defer img.Close()
	dev, err = desktop.NewDevice(img, nil)
	require.NoError(t, err)

	dbID, err := dev.GetDBID(ctx, record.MemoDBName)
	require.NoError(t, err)
	got := record.NewMemo()
	require.NoError(t, dev.GetRecord(ctx, dbID, 0, got))
	assert.Equal(t, "groceries", got.Title)
	_, rid := got.IDs()
	assert.Equal(t, id, rid)
}
