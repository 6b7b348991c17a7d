package storage

import (
	"context"
	"io/fs"
)

// Collection names one of the persisted documents.
type Collection string

const (
	Clients     Collection = "clients"
	Bookings    Collection = "bookings"
	MessageLogs Collection = "messageLogs"
	Config      Collection = "config"
	License     Collection = "license"
)

// Collections lists every collection the service owns.
var Collections = []Collection{Clients, Bookings, MessageLogs, Config, License}

// Port is the key-value surface the domain packages depend on. Each
// collection is a single JSON document, read fully and rewritten fully.
// Implementations must give read-your-writes consistency.
type Port interface {
	// Read decodes the collection into dest. It reports false when the
	// collection has never been written.
	Read(ctx context.Context, c Collection, dest any) (bool, error)
	WriteAll(ctx context.Context, c Collection, value any) error
}

// Backend is a Port with a connection lifecycle.
type Backend interface {
	Port
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error
	Close() error
}
