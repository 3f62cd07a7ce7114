package sync

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/statetable"
)

func newMemo(title string) *record.Memo {
	m := record.NewMemo()
	m.Title = title
	return m
}

type recorder struct {
	changes []Change
	titles  map[uint32]string
	fail    map[uint32]bool
}

func (r *recorder) HandleChange(_ context.Context, c Change, rec record.Record) error {
	if r.fail[c.RecordID] {
		return errors.New("downstream refused")
	}
	r.changes = append(r.changes, c)
	if m, ok := rec.(*record.Memo); ok {
		r.titles[c.RecordID] = m.Title
	}
	return nil
}

func newRecorder() *recorder {
	return &recorder{titles: make(map[uint32]string), fail: make(map[uint32]bool)}
}

func setup(t *testing.T) (*desktop.Device, *Engine) {
	t.Helper()
	dev, err := desktop.NewDevice(desktop.NewMemoryStore(), nil)
	require.NoError(t, err)
	return dev, NewEngine(dev, t.TempDir(), logging.Discard())
}

func dirtyStates(t *testing.T, dev *desktop.Device) []statetable.State {
	t.Helper()
	ctx := context.Background()
	dbID, err := dev.GetDBID(ctx, record.MemoDBName)
	require.NoError(t, err)
	raw, err := dev.GetRecordStateTable(ctx, dbID)
	require.NoError(t, err)

	table := statetable.New()
	table.Parse(raw)
	var out []statetable.State
	for _, st := range table.States() {
		if st.Dirty {
			out = append(out, st)
		}
	}
	return out
}

func TestEngine_Sync(t *testing.T) {
	ctx := context.Background()
	dev, eng := setup(t)

	id1, err := dev.Put(ctx, newMemo("one"))
	require.NoError(t, err)
	id2, err := dev.Put(ctx, newMemo("two"))
	require.NoError(t, err)

	rec := newRecorder()
	res, err := eng.Sync(ctx, record.MemoDBName, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, res.Changes, 2)
	assert.Len(t, res.Applied, 2)
	assert.Empty(t, res.Failed)
	assert.Equal(t, "one", rec.titles[id1])
	assert.Equal(t, "two", rec.titles[id2])
	assert.Empty(t, dirtyStates(t, dev), "applied records are clean on the device")

	res, err = eng.Sync(ctx, record.MemoDBName, newRecorder())
	require.NoError(t, err)
	assert.Empty(t, res.Changes)

	// edit one, delete the other, add a third
	edited := newMemo("one, edited")
	edited.SetIDs(0, id1)
	_, err = dev.Put(ctx, edited)
	require.NoError(t, err)
	id3, err := dev.Put(ctx, newMemo("three"))
	require.NoError(t, err)
	require.NoError(t, dev.Remove(ctx, record.MemoDBName, id2))

	rec = newRecorder()
	res, err = eng.Sync(ctx, record.MemoDBName, rec)
	require.NoError(t, err)
	require.Len(t, res.Applied, 3)
	assert.Equal(t, Modified, res.Applied[0].Type)
	assert.Equal(t, id1, res.Applied[0].RecordID)
	assert.Equal(t, Added, res.Applied[1].Type)
	assert.Equal(t, id3, res.Applied[1].RecordID)
	assert.Equal(t, Deleted, res.Applied[2].Type)
	assert.Equal(t, id2, res.Applied[2].RecordID)
	assert.Equal(t, "one, edited", rec.titles[id1])
}

func TestEngine_SyncRetriesFailedChanges(t *testing.T) {
	ctx := context.Background()
	dev, eng := setup(t)

	id1, err := dev.Put(ctx, newMemo("one"))
	require.NoError(t, err)
	id2, err := dev.Put(ctx, newMemo("two"))
	require.NoError(t, err)

	rec := newRecorder()
	rec.fail[id2] = true
	res, err := eng.Sync(ctx, record.MemoDBName, rec)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, id2, res.Failed[0].RecordID)

	dirty := dirtyStates(t, dev)
	require.Len(t, dirty, 1)
	assert.Equal(t, id2, dirty[0].RecordID, "failed record keeps its dirty flag")

	res, err = eng.Sync(ctx, record.MemoDBName, newRecorder())
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, Change{Type: Added, RecordID: id2, Index: 1, UID: "memos-" + strconv.FormatUint(uint64(id2), 10)}, res.Changes[0])
	assert.NotEqual(t, id1, res.Changes[0].RecordID)
}

func TestEngine_SyncUnknownDatabase(t *testing.T) {
	_, eng := setup(t)
	_, err := eng.Sync(context.Background(), "Nope", newRecorder())
	assert.True(t, errors.Is(err, record.ErrUnknownDatabase))
}

func TestEngine_SyncCanceled(t *testing.T) {
	dev, eng := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := dev.Put(ctx, newMemo("one"))
	require.NoError(t, err)
	cancel()

	res, err := eng.Sync(ctx, record.MemoDBName, newRecorder())
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Empty(t, res.Applied)
}

func TestEngine_PushAndDelete(t *testing.T) {
	ctx := context.Background()
	dev, eng := setup(t)

	// the database must exist on the device
	_, err := dev.Put(ctx, newMemo("seed"))
	require.NoError(t, err)
	_, err = eng.Sync(ctx, record.MemoDBName, newRecorder())
	require.NoError(t, err)

	rid, err := eng.Push(ctx, "desktop-memo-1", newMemo("from desktop"))
	require.NoError(t, err)
	assert.NotZero(t, rid)

	res, err := eng.Sync(ctx, record.MemoDBName, newRecorder())
	require.NoError(t, err)
	assert.Empty(t, res.Changes, "pushed records are not reported back")

	again, err := eng.Push(ctx, "desktop-memo-1", newMemo("from desktop, edited"))
	require.NoError(t, err)
	assert.Equal(t, rid, again)

	entries, err := dev.Entries(ctx, record.MemoDBName)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, eng.Delete(ctx, record.MemoDBName, "desktop-memo-1"))
	entries, err = dev.Entries(ctx, record.MemoDBName)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	err = eng.Delete(ctx, record.MemoDBName, "desktop-memo-1")
	assert.True(t, errors.Is(err, desktop.ErrRecordNotFound))

	res, err = eng.Sync(ctx, record.MemoDBName, newRecorder())
	require.NoError(t, err)
	assert.Empty(t, res.Changes)

	_, err = eng.Push(ctx, "bad", record.NewMemo())
	assert.True(t, record.IsValidationError(err))
}

func TestEngine_PushRejectsInvalidUID(t *testing.T) {
	ctx := context.Background()
	dev, eng := setup(t)

	_, err := dev.Put(ctx, newMemo("seed"))
	require.NoError(t, err)

	rid, err := eng.Push(ctx, "desk-1", newMemo("one"))
	require.NoError(t, err)

	for _, uid := range []string{"", "evil\nuid", "cr\r", " lead"} {
		_, err := eng.Push(ctx, uid, newMemo("bad"))
		assert.True(t, errors.Is(err, desktop.ErrInvalidRecordID), "uid %q: %v", uid, err)
	}

	again, err := eng.Push(ctx, "desk-1", newMemo("one, edited"))
	require.NoError(t, err)
	assert.Equal(t, rid, again, "the idmap survives rejected uids")

	entries, err := dev.Entries(ctx, record.MemoDBName)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDesc(t *testing.T) {
	assert.Equal(t, "address_book", Desc("Address Book"))
	assert.Equal(t, "memos", Desc("Memos"))
}
