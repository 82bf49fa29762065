package xmongo

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// mockClientOps 可配置返回值的 clientOperations。
type mockClientOps struct {
	pingErr       error
	disconnectErr error
	sessions      int

	mu          sync.Mutex
	pings       int
	disconnects int
}

func (m *mockClientOps) Ping(context.Context, *readpref.ReadPref) error {
	m.mu.Lock()
	m.pings++
	m.mu.Unlock()
	return m.pingErr
}

func (m *mockClientOps) Disconnect(context.Context) error {
	m.mu.Lock()
	m.disconnects++
	m.mu.Unlock()
	return m.disconnectErr
}

func (m *mockClientOps) NumberSessionsInProgress() int { return m.sessions }

// mockDatabaseOps 记录 CreateCollection 调用。
type mockDatabaseOps struct {
	err error

	mu    sync.Mutex
	names []string
	opts  int
}

func (m *mockDatabaseOps) CreateCollection(_ context.Context, name string, opts ...options.Lister[options.CreateCollectionOptions]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	m.opts += len(opts)
	return m.err
}

func newMockBackend(client *mockClientOps, db *mockDatabaseOps) *mongoBackend {
	return &mongoBackend{name: "tenant-db", client: client, dbOps: db, options: defaultOptions()}
}
