package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/statetable"
	"github.com/ssargent/bbsync/pkg/sync"
)

// Server holds the API server state
type Server struct {
	device  IDevice
	engine  ISyncEngine
	config  ServerConfig
	metrics *Metrics
	log     *logging.Logger
}

// NewServer creates a new API server
func NewServer(device IDevice, engine ISyncEngine, config ServerConfig, metrics *Metrics, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{
		device:  device,
		engine:  engine,
		config:  config,
		metrics: metrics,
		log:     log.WithComponent("api"),
	}
}

// handleHealth reports that the server is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListDatabases returns the device database catalog
func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	dbdb, err := s.device.GetDBDB(r.Context())
	s.metrics.RecordDeviceOperation("dbdb", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	for _, db := range dbdb.Databases {
		s.metrics.UpdateRecordCount(db.Name, int(db.RecordCount))
	}
	sendSuccess(w, dbdb.Databases)
}

// handleListRecords returns every record of a database. Records that fail
// to parse are listed with their error.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}

	start := time.Now()
	records, err := s.listRecords(r.Context(), dbName)
	s.metrics.RecordDeviceOperation("list", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	sendSuccess(w, records)
}

func (s *Server) listRecords(ctx context.Context, dbName string) ([]RecordResponse, error) {
	if _, err := record.New(dbName); err != nil {
		return nil, err
	}
	dbID, err := s.device.GetDBID(ctx, dbName)
	if err != nil {
		return nil, err
	}
	entries, err := s.device.Entries(ctx, dbName)
	if err != nil {
		return nil, err
	}

	records := make([]RecordResponse, 0, len(entries))
	for _, e := range entries {
		records = append(records, s.readRecord(ctx, dbName, dbID, e))
	}
	return records, nil
}

func (s *Server) readRecord(ctx context.Context, dbName string, dbID uint16, e desktop.Entry) RecordResponse {
	resp := RecordResponse{
		Index:    e.Index,
		RecordID: e.RecordID,
		RecType:  e.RecType,
		Dirty:    e.Dirty,
	}
	rec, err := record.New(dbName)
	if err == nil {
		err = s.device.GetRecord(ctx, dbID, e.Index, rec)
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Description = rec.Description()
	resp.Record = rec
	return resp
}

// handleGetRecord returns one record by record ID
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}
	rid, ok := ridParam(w, r)
	if !ok {
		return
	}

	records, err := s.listRecords(r.Context(), dbName)
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	for _, rec := range records {
		if rec.RecordID == rid {
			sendSuccess(w, rec)
			return
		}
	}
	sendRecordError(w, s.log, fmt.Errorf("%w: 0x%x", desktop.ErrRecordNotFound, rid))
}

// handleCreateRecord adds a record on the handheld side. The device picks
// the record ID.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	s.putRecord(w, r, 0)
}

// handleUpdateRecord replaces a record on the handheld side, or adds it
// under the given ID.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	rid, ok := ridParam(w, r)
	if !ok {
		return
	}
	s.putRecord(w, r, rid)
}

func (s *Server) putRecord(w http.ResponseWriter, r *http.Request, rid uint32) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}
	rec, ok := s.decodeRecord(w, dbName, r.Body)
	if !ok {
		return
	}
	rt, _ := rec.IDs()
	rec.SetIDs(rt, rid)

	start := time.Now()
	rid, err := s.device.Put(r.Context(), rec)
	s.metrics.RecordDeviceOperation("put", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	s.log.Debug("record stored", "database", dbName, "record_id", rid)
	sendSuccess(w, map[string]interface{}{"record_id": rid, "description": rec.Description()})
}

// handleDeleteRecord deletes a record on the handheld side
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}
	rid, ok := ridParam(w, r)
	if !ok {
		return
	}

	start := time.Now()
	err := s.device.Remove(r.Context(), dbName, rid)
	s.metrics.RecordDeviceOperation("remove", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	sendSuccess(w, map[string]string{"message": "Record deleted successfully"})
}

// handleStateTable returns the decoded record state table of a database
func (s *Server) handleStateTable(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}

	start := time.Now()
	states, err := s.stateTable(r.Context(), dbName)
	s.metrics.RecordDeviceOperation("statetable", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	sendSuccess(w, StateTableResponse{Database: dbName, States: states})
}

func (s *Server) stateTable(ctx context.Context, dbName string) ([]statetable.State, error) {
	dbID, err := s.device.GetDBID(ctx, dbName)
	if err != nil {
		return nil, err
	}
	raw, err := s.device.GetRecordStateTable(ctx, dbID)
	if err != nil {
		return nil, err
	}
	table := statetable.New()
	table.Parse(raw)
	return table.States(), nil
}

// handleSync runs a sync pass that accepts every change and returns the
// changed records along with the pass result
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}

	records := map[uint32]RecordResponse{}
	h := sync.HandlerFunc(func(_ context.Context, c sync.Change, rec record.Record) error {
		resp := RecordResponse{Index: c.Index, RecordID: c.RecordID}
		if rec != nil {
			resp.RecType, _ = rec.IDs()
			resp.Description = rec.Description()
			resp.Record = rec
		}
		records[c.RecordID] = resp
		return nil
	})

	start := time.Now()
	res, err := s.engine.Sync(r.Context(), dbName, h)
	s.metrics.RecordDeviceOperation("sync", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	sendSuccess(w, SyncResponse{Result: res, Records: records})
}

// handlePush writes a desktop record to the device under a UID
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}
	uid, ok := uidParam(w, r)
	if !ok {
		return
	}
	rec, ok := s.decodeRecord(w, dbName, r.Body)
	if !ok {
		return
	}

	start := time.Now()
	rid, err := s.engine.Push(r.Context(), uid, rec)
	s.metrics.RecordDeviceOperation("push", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	sendSuccess(w, map[string]interface{}{"uid": uid, "record_id": rid})
}

// handleDesktopDelete removes the device record mapped to a UID
func (s *Server) handleDesktopDelete(w http.ResponseWriter, r *http.Request) {
	dbName, ok := dbParam(w, r)
	if !ok {
		return
	}
	uid, ok := uidParam(w, r)
	if !ok {
		return
	}

	start := time.Now()
	err := s.engine.Delete(r.Context(), dbName, uid)
	s.metrics.RecordDeviceOperation("delete", err == nil, time.Since(start))
	if err != nil {
		sendRecordError(w, s.log, err)
		return
	}
	sendSuccess(w, map[string]string{"message": "Record deleted successfully"})
}

func (s *Server) decodeRecord(w http.ResponseWriter, dbName string, body io.Reader) (record.Record, bool) {
	rec, err := record.New(dbName)
	if err != nil {
		sendRecordError(w, s.log, err)
		return nil, false
	}
	if err := json.NewDecoder(body).Decode(rec); err != nil {
		sendError(w, "Invalid JSON request", http.StatusBadRequest)
		return nil, false
	}
	return rec, true
}

func dbParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	db, err := pathParam(r, "db")
	if err != nil || db == "" {
		sendError(w, "Database name is required", http.StatusBadRequest)
		return "", false
	}
	return db, true
}

func uidParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := pathParam(r, "uid")
	if err != nil || uid == "" {
		sendError(w, "UID is required", http.StatusBadRequest)
		return "", false
	}
	if !sync.ValidUID(uid) {
		sendError(w, "UID may not start with a space or hold a line break", http.StatusBadRequest)
		return "", false
	}
	return uid, true
}

// pathParam returns the decoded URL parameter key. chi matches against the
// raw path only when the request carries escapes such as %2F, and the
// parameter is still escaped in that case.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

// ridParam accepts decimal or 0x prefixed hex record IDs
func ridParam(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	rid, err := strconv.ParseUint(chi.URLParam(r, "rid"), 0, 32)
	if err != nil || rid == 0 {
		sendError(w, "Invalid record ID", http.StatusBadRequest)
		return 0, false
	}
	return uint32(rid), true
}

// startMetricsUpdater periodically refreshes the record count gauges
func (s *Server) startMetricsUpdater(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dbdb, err := s.device.GetDBDB(ctx)
			if err != nil {
				s.log.Warn("metrics update failed", "error", err)
				continue
			}
			for _, db := range dbdb.Databases {
				s.metrics.UpdateRecordCount(db.Name, int(db.RecordCount))
			}
		}
	}
}
