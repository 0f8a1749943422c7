package pipeline

import (
	"context"
	"fmt"
	"sync"

	"lmsetl/internal/lms"
	"lmsetl/internal/schema"
	"lmsetl/pkg/records"
)

// fakeSource pages a canned user population like the LMS API does.
type fakeSource struct {
	users    []map[string]any
	pageSize int
	authErr  error
	listErr  error
	calls    int
}

func (f *fakeSource) Authenticate(ctx context.Context) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return "tok", nil
}

func (f *fakeSource) Users(ctx context.Context, token, departmentID string, offset, limit int) (*lms.Page, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if token != "tok" {
		return nil, fmt.Errorf("bad token %q", token)
	}
	size := f.pageSize
	if size <= 0 {
		size = 2
	}
	end := offset + size
	if end > len(f.users) {
		end = len(f.users)
	}
	var page []map[string]any
	if offset < len(f.users) {
		page = f.users[offset:end]
	}
	return &lms.Page{
		Users:         page,
		TotalItems:    len(f.users),
		Limit:         size,
		Offset:        offset,
		ReturnedItems: len(page),
	}, nil
}

// memStore is an in-memory artifact store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, key string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return data, nil
}

// capturePublisher records published notifications.
type capturePublisher struct {
	subjects []string
	bodies   []string
}

func (c *capturePublisher) Publish(ctx context.Context, subject, message string) error {
	c.subjects = append(c.subjects, subject)
	c.bodies = append(c.bodies, message)
	return nil
}

// fakeRepo implements storage.Repository over a fixed schema, capturing the
// upserted batch.
type fakeRepo struct {
	table      schema.Table
	inspectErr error
	upsertErr  error

	gotColumns []string
	gotRows    []records.Record
}

func (f *fakeRepo) InspectSchema(ctx context.Context) (schema.Table, error) {
	if f.inspectErr != nil {
		return schema.Table{}, f.inspectErr
	}
	return f.table, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, columns []string, rows []records.Record) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.gotColumns = columns
	f.gotRows = rows
	return int64(len(rows)), nil
}

func (f *fakeRepo) Close() {}
