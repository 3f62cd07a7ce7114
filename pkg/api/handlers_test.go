package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/sync"
)

const testKey = "test-key"

func setupTestServer(t *testing.T) (http.Handler, *desktop.Device) {
	t.Helper()

	dev, err := desktop.NewDevice(desktop.NewMemoryStore(), nil)
	require.NoError(t, err)
	engine := sync.NewEngine(dev, t.TempDir(), logging.Discard())

	metrics := NewMetrics(prometheus.NewRegistry())
	server := NewServer(dev, engine, ServerConfig{APIKey: testKey}, metrics, logging.Discard())
	return NewRouter(server), dev
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func dataMap(t *testing.T, resp APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestHealth(t *testing.T) {
	h, _ := setupTestServer(t)

	w, resp := doRequest(t, h, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", dataMap(t, resp)["status"])

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordLifecycle(t *testing.T) {
	h, _ := setupTestServer(t)

	w, resp := doRequest(t, h, "POST", "/api/v1/databases/Memos/records",
		map[string]string{"title": "groceries", "body": "milk"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	created := dataMap(t, resp)
	assert.Equal(t, "groceries", created["description"])
	rid := uint32(created["record_id"].(float64))
	require.NotZero(t, rid)
	ridPath := "/api/v1/databases/Memos/records/" + strconv.FormatUint(uint64(rid), 10)

	w, resp = doRequest(t, h, "GET", "/api/v1/databases/Memos/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	first := list[0].(map[string]interface{})
	assert.Equal(t, float64(rid), first["record_id"])
	assert.Equal(t, true, first["dirty"])
	assert.Equal(t, "milk", first["record"].(map[string]interface{})["body"])

	w, resp = doRequest(t, h, "PUT", ridPath, map[string]string{"title": "groceries", "body": "eggs"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	assert.Equal(t, float64(rid), dataMap(t, resp)["record_id"])

	w, resp = doRequest(t, h, "GET", "/api/v1/databases/Memos/records/0x"+strconv.FormatUint(uint64(rid), 16), nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	got := dataMap(t, resp)
	assert.Equal(t, "eggs", got["record"].(map[string]interface{})["body"])

	w, _ = doRequest(t, h, "GET", "/api/v1/databases", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = doRequest(t, h, "GET", "/api/v1/databases/Memos/statetable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	table := dataMap(t, resp)
	assert.Equal(t, record.MemoDBName, table["database"])
	assert.Len(t, table["states"], 1)

	w, _ = doRequest(t, h, "DELETE", ridPath, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, h, "DELETE", ridPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, h, "GET", ridPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordErrors(t *testing.T) {
	h, _ := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown database", "GET", "/api/v1/databases/Nope/records", nil, http.StatusNotFound, CodeNotFound},
		{"database not on device", "GET", "/api/v1/databases/Address%20Book/records", nil, http.StatusNotFound, CodeNotFound},
		{"bad record id", "GET", "/api/v1/databases/Memos/records/zzz", nil, http.StatusBadRequest, CodeBadRequest},
		{"zero record id", "PUT", "/api/v1/databases/Memos/records/0", map[string]string{"title": "x"}, http.StatusBadRequest, CodeBadRequest},
		{"invalid json", "POST", "/api/v1/databases/Memos/records", "{not json", http.StatusBadRequest, CodeBadRequest},
		{"empty memo", "POST", "/api/v1/databases/Memos/records", map[string]string{}, http.StatusBadRequest, CodeInvalid},
		{"unknown statetable", "GET", "/api/v1/databases/Memos/statetable", nil, http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doRequest(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, resp.Error)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	_, resp := doRequest(t, h, "POST", "/api/v1/databases/Memos/records", map[string]string{})
	require.NotNil(t, resp.Detail)
	assert.Equal(t, "memo", resp.Detail.Record)
	assert.Nil(t, resp.Detail.Field)
}

func TestDesktopUIDs(t *testing.T) {
	h, dev := setupTestServer(t)
	_, err := dev.Put(context.Background(), &record.Memo{Title: "seed"})
	require.NoError(t, err)

	push := func(path string) (int, APIResponse) {
		w, resp := doRequest(t, h, "PUT", path, map[string]string{"title": "from desktop"})
		return w.Code, resp
	}

	status, resp := push("/api/v1/desktop/Memos/desk-1")
	require.Equal(t, http.StatusOK, status, resp.Error)
	first := dataMap(t, resp)["record_id"]

	for _, path := range []string{
		"/api/v1/desktop/Memos/evil%0Auid",
		"/api/v1/desktop/Memos/cr%0D",
		"/api/v1/desktop/Memos/%20lead",
	} {
		status, resp := push(path)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, CodeBadRequest, resp.Code, path)
	}

	// escapes are decoded exactly once
	status, resp = push("/api/v1/desktop/Memos/evil%250Auid")
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "evil%0Auid", dataMap(t, resp)["uid"])

	status, resp = push("/api/v1/desktop/Memos/a%2Fb")
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "a/b", dataMap(t, resp)["uid"])

	status, resp = push("/api/v1/desktop/Memos/desk-1")
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, first, dataMap(t, resp)["record_id"], "the idmap survives awkward uids")
}

func TestCorruptRecordListed(t *testing.T) {
	h, dev := setupTestServer(t)

	_, err := dev.PutRaw(context.Background(), record.MemoDBName, 0, 7, []byte{0x03, 0x00, 0x01, 'x'})
	require.NoError(t, err)

	w, resp := doRequest(t, h, "GET", "/api/v1/databases/Memos/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].(map[string]interface{})["error"])
}

func TestSyncAndDesktopWrites(t *testing.T) {
	h, dev := setupTestServer(t)

	rid, err := dev.Put(context.Background(), &record.Memo{Title: "from handheld"})
	require.NoError(t, err)

	w, resp := doRequest(t, h, "POST", "/api/v1/sync/Memos", nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	data := dataMap(t, resp)
	result := data["result"].(map[string]interface{})
	assert.NotEmpty(t, result["session_id"])
	changes := result["changes"].([]interface{})
	require.Len(t, changes, 1)
	assert.Equal(t, "added", changes[0].(map[string]interface{})["type"])
	records := data["records"].(map[string]interface{})
	assert.Contains(t, records, strconv.FormatUint(uint64(rid), 10))

	// a second pass sees nothing new
	w, resp = doRequest(t, h, "POST", "/api/v1/sync/Memos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dataMap(t, resp)["result"].(map[string]interface{})["changes"])

	w, resp = doRequest(t, h, "PUT", "/api/v1/desktop/Memos/desk-1", map[string]string{"title": "from desktop"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	pushed := dataMap(t, resp)
	assert.Equal(t, "desk-1", pushed["uid"])
	assert.NotZero(t, pushed["record_id"])

	// pushed records are not reported back
	w, resp = doRequest(t, h, "POST", "/api/v1/sync/Memos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, dataMap(t, resp)["result"].(map[string]interface{})["changes"])

	w, _ = doRequest(t, h, "DELETE", "/api/v1/desktop/Memos/desk-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, h, "DELETE", "/api/v1/desktop/Memos/desk-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, h, "POST", "/api/v1/sync/Calendar", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
