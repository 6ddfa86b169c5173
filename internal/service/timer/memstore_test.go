package timer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/models"
	"github.com/nikhil/worktrack/internal/store"
)

// memStore is an in-memory TxEntryStore. InTx holds the store lock for the whole
// unit of work and restores a snapshot when fn fails.
type memStore struct {
	mu      sync.Mutex
	entries map[int64]models.TimeEntry
	nextID  int64
	locks   int

	insertErr error
	listErr   error
}

var _ store.TxEntryStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{entries: make(map[int64]models.TimeEntry)}
}

type memTx struct{ m *memStore }

func (m *memStore) InTx(ctx context.Context, fn func(s store.EntryStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]models.TimeEntry, len(m.entries))
	for id, e := range m.entries {
		snapshot[id] = e
	}
	nextID := m.nextID

	if err := fn(memTx{m}); err != nil {
		m.entries = snapshot
		m.nextID = nextID
		return err
	}
	return nil
}

// seed stores an entry as-is and returns its id.
func (m *memStore) seed(e models.TimeEntry) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.entries[e.ID] = e
	return e.ID
}

func (m *memStore) entry(id int64) models.TimeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}

func (m *memStore) activeCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.EndTime == nil {
			n++
		}
	}
	return n
}

func (m *memStore) LockUser(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.LockUser(ctx, userID, at)
}

func (m *memStore) ListActive(ctx context.Context, userID int64, orgID *int64) ([]models.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.ListActive(ctx, userID, orgID)
}

func (m *memStore) CloseActive(ctx context.Context, userID int64, orgID *int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.CloseActive(ctx, userID, orgID, at)
}

func (m *memStore) Close(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.Close(ctx, id, userID, at)
}

func (m *memStore) Insert(ctx context.Context, e *models.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.Insert(ctx, e)
}

func (m *memStore) Get(ctx context.Context, id, userID int64) (*models.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.Get(ctx, id, userID)
}

func (m *memStore) Update(ctx context.Context, id, userID int64, patch models.EntryPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.Update(ctx, id, userID, patch)
}

func (m *memStore) Delete(ctx context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.Delete(ctx, id, userID)
}

func (m *memStore) SumCompleted(ctx context.Context, userID int64, orgID *int64, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.SumCompleted(ctx, userID, orgID, from, to)
}

func (t memTx) LockUser(_ context.Context, _ int64, _ time.Time) error {
	t.m.locks++
	return nil
}

func (t memTx) ListActive(_ context.Context, userID int64, orgID *int64) ([]models.TimeEntry, error) {
	if t.m.listErr != nil {
		return nil, t.m.listErr
	}
	out := []models.TimeEntry{}
	for _, e := range t.m.entries {
		if e.UserID == userID && e.EndTime == nil && (orgID == nil || e.OrganizationID == *orgID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func closeEntry(e *models.TimeEntry, at time.Time) {
	end := at
	d := int64(at.Sub(e.StartTime) / time.Second)
	if d < 0 {
		d = 0
	}
	e.EndTime = &end
	e.Duration = &d
}

func (t memTx) CloseActive(_ context.Context, userID int64, orgID *int64, at time.Time) (int64, error) {
	var n int64
	for id, e := range t.m.entries {
		if e.UserID == userID && e.EndTime == nil && (orgID == nil || e.OrganizationID == *orgID) {
			closeEntry(&e, at)
			t.m.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (t memTx) Close(_ context.Context, id, userID int64, at time.Time) (bool, error) {
	e, ok := t.m.entries[id]
	if !ok || e.UserID != userID || e.EndTime != nil {
		return false, nil
	}
	closeEntry(&e, at)
	t.m.entries[id] = e
	return true, nil
}

func (t memTx) Insert(_ context.Context, e *models.TimeEntry) error {
	if t.m.insertErr != nil {
		return apperr.Storage("insert entry", t.m.insertErr)
	}
	t.m.nextID++
	e.ID = t.m.nextID
	t.m.entries[e.ID] = *e
	return nil
}

func (t memTx) Get(_ context.Context, id, userID int64) (*models.TimeEntry, error) {
	e, ok := t.m.entries[id]
	if !ok || e.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return &e, nil
}

func (t memTx) Update(_ context.Context, id, userID int64, patch models.EntryPatch) error {
	e, ok := t.m.entries[id]
	if !ok || e.UserID != userID {
		return errors.New("update of missing entry")
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	t.m.entries[id] = e
	return nil
}

func (t memTx) Delete(_ context.Context, id, userID int64) error {
	e, ok := t.m.entries[id]
	if !ok || e.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(t.m.entries, id)
	return nil
}

func (t memTx) SumCompleted(_ context.Context, userID int64, orgID *int64, from, to time.Time) (int64, error) {
	var total int64
	for _, e := range t.m.entries {
		if e.UserID != userID || e.EndTime == nil || e.Duration == nil {
			continue
		}
		if orgID != nil && e.OrganizationID != *orgID {
			continue
		}
		if e.StartTime.Before(from) || e.StartTime.After(to) {
			continue
		}
		total += *e.Duration
	}
	return total, nil
}
