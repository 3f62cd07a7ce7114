package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/record"
)

// Handler receives the changes of a sync pass. r is the parsed record for
// Added and Modified changes and nil for Deleted ones. A change is only
// committed when the handler returns nil.
type Handler interface {
	HandleChange(ctx context.Context, c Change, r record.Record) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c Change, r record.Record) error

// HandleChange implements Handler.
func (f HandlerFunc) HandleChange(ctx context.Context, c Change, r record.Record) error {
	return f(ctx, c, r)
}

var acceptAll = HandlerFunc(func(context.Context, Change, record.Record) error { return nil })

// Result describes one sync pass.
type Result struct {
	SessionID string   `json:"session_id"`
	Database  string   `json:"database"`
	Changes   []Change `json:"changes"`
	Applied   []Change `json:"applied"`
	Failed    []Change `json:"failed"`
}

// Engine runs sync passes against a device, keeping per-database state
// files in a directory.
type Engine struct {
	desk desktop.Desktop
	dir  string
	log  *logging.Logger
}

// NewEngine returns an engine for desk that keeps its state in dir.
func NewEngine(desk desktop.Desktop, dir string, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Default()
	}
	return &Engine{desk: desk, dir: dir, log: log.WithComponent("sync")}
}

// Desc returns the short name used for the state files of dbName.
func Desc(dbName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(dbName)), " ", "_")
}

// State loads the saved state of dbName together with the live state
// table from the device.
func (e *Engine) State(ctx context.Context, dbName string) (*State, uint16, error) {
	state := NewState(e.dir, Desc(dbName), dbName)
	if err := state.LoadCache(); err != nil {
		e.log.Warn("cache unreadable, treating every record as new", "database", dbName, "error", err)
	}
	if err := state.LoadMap(); err != nil {
		e.log.Warn("idmap unreadable, starting empty", "database", dbName, "error", err)
	}

	dbID, err := e.desk.GetDBID(ctx, dbName)
	if err != nil {
		return nil, 0, err
	}
	raw, err := e.desk.GetRecordStateTable(ctx, dbID)
	if err != nil {
		return nil, 0, fmt.Errorf("state table of %q: %w", dbName, err)
	}
	state.Table.Parse(raw)
	return state, dbID, nil
}

// Sync runs one pass over dbName: it diffs the device state table against
// the previous pass, hands every change to h, clears the dirty flags of the
// records that were applied and commits the applied changes to the cache.
// A nil h accepts every change.
func (e *Engine) Sync(ctx context.Context, dbName string, h Handler) (*Result, error) {
	start := time.Now()
	session := ksuid.New().String()
	log := e.log.With("session", session, "database", dbName)

	res, err := e.sync(ctx, dbName, h, log)
	syncPassDuration.WithLabelValues(dbName).Observe(time.Since(start).Seconds())
	if res != nil {
		res.SessionID = session
	}
	if err != nil {
		syncPassesTotal.WithLabelValues(dbName, statusError).Inc()
		log.Error("sync pass failed", "error", err)
		return res, err
	}
	syncPassesTotal.WithLabelValues(dbName, statusSuccess).Inc()
	log.Info("sync pass done",
		"changes", len(res.Changes),
		"applied", len(res.Applied),
		"failed", len(res.Failed),
		"duration", time.Since(start))
	return res, nil
}

func (e *Engine) sync(ctx context.Context, dbName string, h Handler, log *slog.Logger) (*Result, error) {
	if _, err := record.New(dbName); err != nil {
		return nil, err
	}
	if h == nil {
		h = acceptAll
	}
	state, dbID, err := e.State(ctx, dbName)
	if err != nil {
		return nil, err
	}

	res := &Result{Database: dbName, Changes: state.Diff()}
	for _, c := range res.Changes {
		if ctx.Err() != nil {
			break
		}
		if err := e.apply(ctx, dbName, dbID, c, h); err != nil {
			log.Warn("change not applied", "type", c.Type, "record_id", c.RecordID, "index", c.Index, "error", err)
			syncChangesTotal.WithLabelValues(dbName, c.Type.String(), resultFailed).Inc()
			res.Failed = append(res.Failed, c)
			continue
		}
		log.Debug("change applied", "type", c.Type, "record_id", c.RecordID, "uid", c.UID)
		syncChangesTotal.WithLabelValues(dbName, c.Type.String(), resultApplied).Inc()
		res.Applied = append(res.Applied, c)
		if c.Type == Added {
			state.IDMap.Map(c.UID, c.RecordID)
		}
	}

	if err := e.ClearDirtyFlags(ctx, dbID, state, res.Applied); err != nil {
		log.Warn("dirty flags not cleared", "error", err)
	}

	state.Commit(res.Applied)
	state.CleanupMap()
	if err := state.SaveCache(); err != nil {
		return res, fmt.Errorf("save cache: %w", err)
	}
	if err := state.SaveMap(); err != nil {
		return res, fmt.Errorf("save idmap: %w", err)
	}
	return res, ctx.Err()
}

func (e *Engine) apply(ctx context.Context, dbName string, dbID uint16, c Change, h Handler) error {
	if c.Type == Deleted {
		return h.HandleChange(ctx, c, nil)
	}

	r, err := record.New(dbName)
	if err != nil {
		return err
	}
	if err := e.desk.GetRecord(ctx, dbID, c.Index, r); err != nil {
		return err
	}
	return h.HandleChange(ctx, c, r)
}

// ClearDirtyFlags clears the device dirty flag of every applied record that
// still has it set in the live table. Every record is attempted; the first
// error is returned.
func (e *Engine) ClearDirtyFlags(ctx context.Context, dbID uint16, state *State, applied []Change) error {
	var first error
	for _, c := range applied {
		if c.Type == Deleted {
			continue
		}
		st, ok := state.Table.Get(c.Index)
		if !ok || !st.Dirty || st.RecordID != c.RecordID {
			continue
		}
		if err := e.desk.ClearDirty(ctx, dbID, c.Index); err != nil && first == nil {
			first = fmt.Errorf("clear dirty 0x%x: %w", c.RecordID, err)
		}
	}
	return first
}

// Push writes r to the device under uid, adding it when uid is not on the
// device yet and replacing it otherwise. The record is entered in the cache
// so the next pass does not report it back. Push returns the record ID.
func (e *Engine) Push(ctx context.Context, uid string, r record.Record) (uint32, error) {
	dbName := r.DBName()
	state, dbID, err := e.State(ctx, dbName)
	if err != nil {
		return 0, err
	}

	if !ValidUID(uid) {
		return 0, fmt.Errorf("%w: invalid uid %q", desktop.ErrInvalidRecordID, uid)
	}
	rid := state.GetMappedRecordID(uid)
	rt, _ := r.IDs()
	r.SetIDs(rt, rid)

	op := "add"
	if index, ok := state.Table.GetIndex(rid); ok {
		op = "set"
		err = e.desk.SetRecord(ctx, dbID, index, r)
	} else {
		err = e.desk.AddRecord(ctx, dbID, r)
	}
	if err != nil {
		desktopWritesTotal.WithLabelValues(dbName, op, statusError).Inc()
		return 0, err
	}
	desktopWritesTotal.WithLabelValues(dbName, op, statusSuccess).Inc()
	e.log.Debug("record written", "database", dbName, "operation", op, "uid", uid, "record_id", rid)

	state.Cache[rid] = struct{}{}
	if err := state.SaveCache(); err != nil {
		return rid, err
	}
	return rid, state.SaveMap()
}

// Delete removes the record mapped to uid from the device and forgets it.
func (e *Engine) Delete(ctx context.Context, dbName, uid string) error {
	state, dbID, err := e.State(ctx, dbName)
	if err != nil {
		return err
	}
	rid, ok := state.IDMap.GetRID(uid)
	if !ok {
		return fmt.Errorf("%w: uid %q", desktop.ErrRecordNotFound, uid)
	}
	index, ok := state.Table.GetIndex(rid)
	if !ok {
		return fmt.Errorf("%w: 0x%x", desktop.ErrRecordNotFound, rid)
	}
	if err := e.desk.DeleteRecord(ctx, dbID, index); err != nil {
		desktopWritesTotal.WithLabelValues(dbName, "delete", statusError).Inc()
		return err
	}
	desktopWritesTotal.WithLabelValues(dbName, "delete", statusSuccess).Inc()

	delete(state.Cache, rid)
	state.IDMap.UnmapUID(uid)
	if err := state.SaveCache(); err != nil {
		return err
	}
	return state.SaveMap()
}
