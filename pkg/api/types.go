package api

import (
	"encoding/json"

	"github.com/ssargent/bbsync/pkg/statetable"
	"github.com/ssargent/bbsync/pkg/sync"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Code    string       `json:"code,omitempty"`
	Detail  *ErrorDetail `json:"detail,omitempty"`
}

// ErrorDetail names the record type, and for parse failures the field,
// behind an error
type ErrorDetail struct {
	Record string `json:"record"`
	Field  *uint8 `json:"field,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
}

// RecordResponse is a device record with its bookkeeping
type RecordResponse struct {
	Index       uint16      `json:"index"`
	RecordID    uint32      `json:"record_id"`
	RecType     uint8       `json:"rec_type"`
	Dirty       bool        `json:"dirty"`
	Description string      `json:"description"`
	Record      interface{} `json:"record,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// StateTableResponse is a decoded record state table
type StateTableResponse struct {
	Database string             `json:"database"`
	States   []statetable.State `json:"states"`
}

// SyncResponse is the outcome of a sync pass together with the records
// that were handed over
type SyncResponse struct {
	Result  *sync.Result              `json:"result"`
	Records map[uint32]RecordResponse `json:"records,omitempty"`
}

// PushRequest writes a record to the device from the desktop side
type PushRequest struct {
	UID    string          `json:"uid"`
	Record json.RawMessage `json:"record"`
}
