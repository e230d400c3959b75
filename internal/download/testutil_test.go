package download

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mydia/mydia/internal/migrations"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(db))
	return NewStore(db)
}

// fakeClient is a scriptable in-memory download client.
type fakeClient struct {
	name     string
	addErr   error
	statuses map[string]*ClientStatus
	added    []string
	removed  []string
	nextID   int
}

func newFakeClient(name string) *fakeClient {
	return &fakeClient{name: name, statuses: make(map[string]*ClientStatus)}
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Add(ctx context.Context, url string) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.nextID++
	id := fmt.Sprintf("task-%d", f.nextID)
	f.added = append(f.added, url)
	f.statuses[id] = &ClientStatus{TaskID: id}
	return id, nil
}

func (f *fakeClient) Status(ctx context.Context, taskID string) (*ClientStatus, error) {
	s, ok := f.statuses[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return s, nil
}

func (f *fakeClient) Remove(ctx context.Context, taskID string) error {
	f.removed = append(f.removed, taskID)
	delete(f.statuses, taskID)
	return nil
}

// fakeImports records import scheduling requests.
type fakeImports struct {
	scheduled []int64
}

func (f *fakeImports) ScheduleImport(ctx context.Context, downloadID int64) error {
	f.scheduled = append(f.scheduled, downloadID)
	return nil
}
