package permission

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// memSource implements Source and RoleStore over plain maps.
type memSource struct {
	mu          sync.Mutex
	businesses  []Business
	shops       []Shop
	roles       map[string]Role
	assignments map[string]Assignment
	snapshots   map[string]Snapshot
	upserts     int
	err         error
}

func newMemSource() *memSource {
	return &memSource{
		roles:       map[string]Role{},
		assignments: map[string]Assignment{},
		snapshots:   map[string]Snapshot{},
	}
}

func (s *memSource) OwnedBusinesses(_ context.Context, userID string) ([]Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []Business
	for _, b := range s.businesses {
		if b.OwnerID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memSource) Assignments(_ context.Context, userID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, a := range s.assignments {
		if a.UserID != userID {
			continue
		}
		if r, ok := s.roles[a.RoleID]; ok {
			role := r
			a.Role = &role
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memSource) ShopsForBusinesses(_ context.Context, businessIDs []string) ([]Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range businessIDs {
		want[id] = true
	}
	var out []Shop
	for _, sh := range s.shops {
		if want[sh.BusinessID] {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (s *memSource) UpsertSnapshot(_ context.Context, userID string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.snapshots[userID] = snap.Clone()
	return nil
}

func (s *memSource) CreateRole(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = *role
	return nil
}

func (s *memSource) Role(_ context.Context, roleID string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *memSource) SaveRole(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = *role
	return nil
}

func (s *memSource) RolesForBusiness(_ context.Context, businessID string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, r := range s.roles {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memSource) CreateAssignment(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = *a
	return nil
}

func (s *memSource) AssignmentFor(_ context.Context, businessID, userID string) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.BusinessID == businessID && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memSource) SaveAssignment(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = *a
	return nil
}

func (s *memSource) DeleteAssignment(_ context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, assignmentID)
	return nil
}

func (s *memSource) AssignmentsForBusiness(_ context.Context, businessID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, a := range s.assignments {
		if a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	return out, nil
}

// countingResolver wraps a resolver and counts Resolve calls.
type countingResolver struct {
	inner SnapshotResolver
	calls atomic.Int64
}

func (r *countingResolver) Resolve(ctx context.Context, userID string) (Snapshot, error) {
	r.calls.Add(1)
	return r.inner.Resolve(ctx, userID)
}

// staticResolver always returns the same snapshot.
type staticResolver struct {
	snap Snapshot
}

func (r staticResolver) Resolve(context.Context, string) (Snapshot, error) {
	return r.snap.Clone(), nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
