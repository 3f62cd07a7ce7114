// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/ssargent/bbsync/pkg/catalog"
	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/sync"
)

// IDevice is the simulated device the API exposes
type IDevice interface {
	GetDBDB(ctx context.Context) (*catalog.DatabaseDatabase, error)
	GetDBID(ctx context.Context, name string) (uint16, error)
	GetRecordStateTable(ctx context.Context, dbID uint16) ([]byte, error)
	GetRecord(ctx context.Context, dbID, index uint16, r record.Record) error
	Entries(ctx context.Context, dbName string) ([]desktop.Entry, error)

	// Device side edits
	Put(ctx context.Context, r record.Record) (uint32, error)
	Remove(ctx context.Context, dbName string, recordID uint32) error
}

// ISyncEngine runs sync passes and desktop side writes
type ISyncEngine interface {
	Sync(ctx context.Context, dbName string, h sync.Handler) (*sync.Result, error)
	Push(ctx context.Context, uid string, r record.Record) (uint32, error)
	Delete(ctx context.Context, dbName, uid string) error
}
