// Package memstore holds mutex guarded store implementations for service and
// handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
)

type UserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]model.User)}
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) EnsureUser(ctx context.Context, userID string, tier model.Tier, now int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = model.User{ID: userID, Tier: tier, Ctime: now, Mtime: now}
		s.users[userID] = u
	}
	return &u, nil
}

func (s *UserStore) UpdateTier(ctx context.Context, userID string, tier model.Tier, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	u.Tier = tier
	u.Mtime = now
	s.users[userID] = u
	return nil
}

// Len reports the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type OverrideStore struct {
	mu        sync.Mutex
	overrides []model.TierOverride
}

func NewOverrideStore() *OverrideStore {
	return &OverrideStore{}
}

func (s *OverrideStore) Create(ctx context.Context, override *model.TierOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = append(s.overrides, *override)
	return nil
}

func (s *OverrideStore) ListActive(ctx context.Context, userID string, now int64) ([]*model.TierOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.TierOverride, 0)
	for i := range s.overrides {
		o := s.overrides[i]
		if o.UserID == userID && o.ActiveAt(now) {
			out = append(out, &o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ctime > out[j].Ctime })
	return out, nil
}
